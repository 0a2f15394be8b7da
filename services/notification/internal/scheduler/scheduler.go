// Package scheduler runs the notification retry loop: it sends Pending
// notifications the consumer could not finish and retries Failed ones up to
// a cap.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// Defaults for Config.
const (
	DefaultInterval       = time.Minute
	DefaultBatchSize      = 50
	DefaultPacing         = 100 * time.Millisecond
	DefaultMaxAutoRetries = 3
)

// Custom metric names.
const (
	MetricCycles      = "retry_cycles"
	MetricDueSent     = "due_notifications_sent"
	MetricAutoRetried = "notifications_auto_retried"
)

// Service is the subset of notifications.Service the scheduler drives.
type Service interface {
	Due(ctx context.Context, limit int) ([]*notifications.Notification, error)
	Retryable(ctx context.Context, maxRetries, limit int) ([]*notifications.Notification, error)
	Send(ctx context.Context, id string) (bool, error)
	Retry(ctx context.Context, id string) (bool, error)
}

// Recorder is the subset of metrics the scheduler reports.
type Recorder interface {
	RecordError()
	IncrementCustom(name string)
}

type noOpRecorder struct{}

func (noOpRecorder) RecordError()             {}
func (noOpRecorder) IncrementCustom(_ string) {}

// Config controls the retry loop.
type Config struct {
	// Interval is the wait between cycles.
	Interval time.Duration
	// BatchSize caps how many notifications each phase of a cycle handles.
	BatchSize int
	// Pacing is the pause between two sends.
	Pacing time.Duration
	// MaxAutoRetries stops automatic retries once a notification has failed this
	// many times. Zero disables automatic retries.
	MaxAutoRetries int
}

// CycleResult summarizes one retry cycle.
type CycleResult struct {
	Due       int
	Sent      int
	Retryable int
	Retried   int
	Errors    int
}

// Scheduler drives the periodic retry loop.
type Scheduler struct {
	service Service
	metrics Recorder
	cfg     Config
	done    chan struct{}
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithMetrics sets the metrics recorder.
func WithMetrics(m Recorder) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a scheduler. Non-positive interval, batch size and negative
// pacing fall back to the package defaults.
func New(service Service, cfg Config, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	if cfg.MaxAutoRetries < 0 {
		cfg.MaxAutoRetries = 0
	}
	s := &Scheduler{
		service: service,
		metrics: noOpRecorder{},
		cfg:     cfg,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the scheduler in a background goroutine until ctx is cancelled.
// It must be called at most once.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Wait blocks until a scheduler started with Start has returned.
func (s *Scheduler) Wait() {
	<-s.done
}

// Run executes one cycle per Interval until ctx is cancelled. The first cycle
// runs after one Interval so startup does not race the consumer.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Starting notification retry scheduler",
		"interval", s.cfg.Interval,
		"batch_size", s.cfg.BatchSize,
		"pacing", s.cfg.Pacing,
		"max_auto_retries", s.cfg.MaxAutoRetries,
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Notification retry scheduler stopped")
			return
		case <-ticker.C:
		}

		result, err := s.RunCycle(ctx)
		if err != nil && ctx.Err() == nil {
			s.metrics.RecordError()
			slog.Error("Retry cycle failed", "error", err)
			continue
		}
		if result.Due > 0 || result.Retryable > 0 {
			slog.Info("Retry cycle completed",
				"due", result.Due,
				"sent", result.Sent,
				"retryable", result.Retryable,
				"retried", result.Retried,
				"errors", result.Errors,
			)
		}
	}
}

// RunCycle sends up to BatchSize Pending notifications, oldest first, then
// retries up to BatchSize Failed notifications below MaxAutoRetries.
// Cancellation stops the cycle between notifications.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	var result CycleResult
	s.metrics.IncrementCustom(MetricCycles)

	due, err := s.service.Due(ctx, s.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list due notifications: %w", err)
	}
	result.Due = len(due)

	if err := s.each(ctx, due, s.service.Send, func(ok bool) {
		if ok {
			result.Sent++
			s.metrics.IncrementCustom(MetricDueSent)
		}
	}, &result); err != nil {
		return result, err
	}

	if s.cfg.MaxAutoRetries == 0 {
		return result, nil
	}

	retryable, err := s.service.Retryable(ctx, s.cfg.MaxAutoRetries, s.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list retryable notifications: %w", err)
	}
	result.Retryable = len(retryable)

	err = s.each(ctx, retryable, s.service.Retry, func(ok bool) {
		if ok {
			result.Retried++
			s.metrics.IncrementCustom(MetricAutoRetried)
		}
	}, &result)
	return result, err
}

// each applies op to every notification with Pacing between calls. A call
// that has started completes even if ctx is cancelled.
func (s *Scheduler) each(ctx context.Context, list []*notifications.Notification, op func(context.Context, string) (bool, error), onResult func(bool), result *CycleResult) error {
	for i, n := range list {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ok, err := op(context.WithoutCancel(ctx), n.ID)
		if err != nil {
			result.Errors++
			s.metrics.RecordError()
			slog.Error("Failed to process notification", "notification_id", n.ID, "error", err)
		} else {
			onResult(ok)
		}
		if i < len(list)-1 && !s.pause(ctx) {
			return ctx.Err()
		}
	}
	return nil
}

// pause sleeps Pacing. It returns false if ctx was cancelled first.
func (s *Scheduler) pause(ctx context.Context) bool {
	if s.cfg.Pacing <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.Pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
