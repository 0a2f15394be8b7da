// Package consumer reads alert events from Kafka and hands them to the
// dispatcher with at-least-once semantics. Offsets are committed only after an
// event is handled, skipped, or written back to the topic for redelivery.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	kafkautil "github.com/afikmenashe/patient-alerting/pkg/kafka"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/dispatcher"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/metrics"
)

// Defaults for Config.
const (
	DefaultGroupID             = "notification-service"
	DefaultMaxDeliveryAttempts = 10
	DefaultRequeueDelay        = time.Second
	fetchErrorBackoff          = time.Second
)

// DeadLetterSuffix is appended to the events topic to name its dead-letter topic.
const DeadLetterSuffix = kafkautil.DeadLetterSuffix

// Reader is the subset of *kafka.Reader used by Consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer is the subset of *kafka.Writer used for requeueing.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one decoded alert event.
type Handler interface {
	Handle(ctx context.Context, evt *events.AlertCreatedEvent) error
}

// Config controls routing and redelivery.
type Config struct {
	// BindingKeys are routing-key patterns this consumer accepts. "*" matches
	// one dot-separated word and "#" matches zero or more.
	BindingKeys []string
	// MaxDeliveryAttempts bounds redelivery of a failing event. Once reached the
	// event is parked on the dead-letter writer, or dropped with an error log
	// when there is none.
	MaxDeliveryAttempts int
	// RequeueDelay is waited before a failed event is written back. Shutdown
	// cuts the wait short.
	RequeueDelay time.Duration
	// DeadLetterTopic receives exhausted events. Empty disables dead-lettering.
	DeadLetterTopic string
}

// Consumer drives the fetch, handle, commit loop.
type Consumer struct {
	reader     Reader
	writer     Writer
	deadLetter Writer
	handler    Handler
	cfg        Config
	metrics    metrics.Recorder
}

// Option configures optional Consumer dependencies.
type Option func(*Consumer)

// WithDeadLetter sets the writer exhausted events are parked on.
func WithDeadLetter(w Writer) Option {
	return func(c *Consumer) {
		c.deadLetter = w
	}
}

// New creates a consumer over an existing reader and requeue writer.
func New(reader Reader, writer Writer, handler Handler, cfg Config, m metrics.Recorder, opts ...Option) *Consumer {
	if len(cfg.BindingKeys) == 0 {
		cfg.BindingKeys = []string{events.RoutingKeyAlertCreated}
	}
	if cfg.MaxDeliveryAttempts <= 0 {
		cfg.MaxDeliveryAttempts = DefaultMaxDeliveryAttempts
	}
	if cfg.RequeueDelay < 0 {
		cfg.RequeueDelay = 0
	}
	if m == nil {
		m = metrics.NewNoOp()
	}
	c := &Consumer{
		reader:  reader,
		writer:  writer,
		handler: handler,
		cfg:     cfg,
		metrics: m,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewKafka creates a consumer group reader and a requeue writer on topic.
func NewKafka(brokers, topic, groupID string, handler Handler, cfg Config, m metrics.Recorder) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
		"binding_keys", cfg.BindingKeys,
	)

	readerCfg := kafkautil.NewReaderConfig(brokerList, topic, groupID)
	kafkautil.LogReaderConfig(readerCfg)

	var opts []Option
	if cfg.DeadLetterTopic != "" {
		slog.Info("Dead-lettering exhausted events", "dead_letter_topic", cfg.DeadLetterTopic)
		opts = append(opts, WithDeadLetter(kafkautil.NewWriter(brokerList, cfg.DeadLetterTopic)))
	}

	return New(kafka.NewReader(readerCfg), kafkautil.NewWriter(brokerList, topic), handler, cfg, m, opts...), nil
}

// Run consumes until ctx is cancelled. An event already fetched is processed
// to completion. A non-nil error means a failed event could not be written
// back or dead-lettered; its offset is left uncommitted so a restart
// redelivers it.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("Starting alert event consumer", "binding_keys", c.cfg.BindingKeys)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Alert event consumer stopped")
				return nil
			}
			c.metrics.RecordError()
			slog.Error("Failed to fetch message from Kafka", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchErrorBackoff):
			}
			continue
		}

		if err := c.process(ctx, msg); err != nil {
			return err
		}
	}
}

// process handles one message and commits it unless a write-back fails.
// Work runs detached from runCtx so shutdown does not abandon a fetched event.
func (c *Consumer) process(runCtx context.Context, msg kafka.Message) error {
	ctx := context.WithoutCancel(runCtx)
	start := time.Now()
	c.metrics.RecordReceived()

	routingKey, _ := kafkautil.HeaderValue(msg, kafkautil.HeaderRoutingKey)
	if !c.bound(routingKey) {
		slog.Info("Ignoring message with unbound routing key",
			"routing_key", routingKey,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		c.metrics.RecordSkipped()
		c.commit(ctx, msg)
		return nil
	}

	evt, err := events.Decode(msg.Value)
	if err != nil {
		slog.Warn("Discarding undecodable alert event",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		c.metrics.RecordSkipped()
		c.commit(ctx, msg)
		return nil
	}

	attempt := kafkautil.DeliveryAttempt(msg)
	err = c.handler.Handle(ctx, evt)
	switch {
	case err == nil:
		c.metrics.RecordProcessed(time.Since(start))
		slog.Debug("Alert event handled", "alert_id", evt.AlertID, "attempt", attempt)

	case errors.Is(err, dispatcher.ErrInvalidEvent):
		c.metrics.RecordSkipped()
		slog.Warn("Discarding invalid alert event", "alert_id", evt.AlertID, "error", err)

	case attempt >= c.cfg.MaxDeliveryAttempts:
		c.metrics.RecordError()
		if c.deadLetter == nil {
			slog.Error("Alert event failed too many times, dropping",
				"alert_id", evt.AlertID,
				"attempt", attempt,
				"error", err,
			)
			break
		}
		slog.Error("Alert event failed too many times, dead-lettering",
			"alert_id", evt.AlertID,
			"attempt", attempt,
			"error", err,
		)
		if dlErr := c.park(ctx, msg, err); dlErr != nil {
			return fmt.Errorf("failed to dead-letter alert event %s: %w", evt.AlertID, dlErr)
		}

	default:
		slog.Warn("Alert event failed, requeueing",
			"alert_id", evt.AlertID,
			"attempt", attempt,
			"error", err,
		)
		c.wait(runCtx)
		if err := c.requeue(ctx, msg, attempt+1); err != nil {
			c.metrics.RecordError()
			return fmt.Errorf("failed to requeue alert event %s: %w", evt.AlertID, err)
		}
	}

	c.commit(ctx, msg)
	return nil
}

// wait blocks for the requeue delay or until runCtx is cancelled.
func (c *Consumer) wait(runCtx context.Context) {
	if c.cfg.RequeueDelay <= 0 {
		return
	}
	timer := time.NewTimer(c.cfg.RequeueDelay)
	defer timer.Stop()
	select {
	case <-runCtx.Done():
	case <-timer.C:
	}
}

// requeue writes msg back to its topic with the given delivery attempt.
func (c *Consumer) requeue(ctx context.Context, msg kafka.Message, attempt int) error {
	out := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: kafkautil.WithHeader(msg.Headers, kafkautil.HeaderDeliveryAttempt, strconv.Itoa(attempt)),
	}
	if err := c.writer.WriteMessages(ctx, out); err != nil {
		return err
	}
	c.metrics.RecordPublished()
	c.metrics.RecordRequeued()
	return nil
}

// park writes an exhausted msg to the dead-letter writer with its last error.
func (c *Consumer) park(ctx context.Context, msg kafka.Message, cause error) error {
	out := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: kafkautil.WithHeader(msg.Headers, kafkautil.HeaderDeadLetterError, cause.Error()),
	}
	if err := c.deadLetter.WriteMessages(ctx, out); err != nil {
		return err
	}
	c.metrics.RecordDeadLettered()
	return nil
}

// commit logs commit failures; the message is then redelivered, which the
// dispatcher tolerates.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.metrics.RecordError()
		slog.Error("Failed to commit offset",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}

func (c *Consumer) bound(routingKey string) bool {
	if routingKey == "" {
		return false
	}
	for _, pattern := range c.cfg.BindingKeys {
		if MatchBinding(pattern, routingKey) {
			return true
		}
	}
	return false
}

// MatchBinding reports whether a routing key matches a topic-exchange binding
// pattern. Matching is case-insensitive.
func MatchBinding(pattern, routingKey string) bool {
	return matchWords(
		strings.Split(strings.ToLower(pattern), "."),
		strings.Split(strings.ToLower(routingKey), "."),
	)
}

func matchWords(pattern, key []string) bool {
	if len(pattern) == 0 {
		return len(key) == 0
	}
	switch pattern[0] {
	case "#":
		for i := 0; i <= len(key); i++ {
			if matchWords(pattern[1:], key[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pattern[1:], key[1:])
	default:
		return len(key) > 0 && pattern[0] == key[0] && matchWords(pattern[1:], key[1:])
	}
}

// Close closes the reader and the requeue and dead-letter writers.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer")
	err := errors.Join(c.reader.Close(), c.writer.Close())
	if c.deadLetter != nil {
		err = errors.Join(err, c.deadLetter.Close())
	}
	return err
}
