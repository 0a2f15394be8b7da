// Package push delivers notifications to recipient devices over MQTT.
// Each recipient subscribes to <topic-prefix>/<recipient-id>.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// DefaultTopicPrefix is the MQTT topic prefix for push notifications.
const DefaultTopicPrefix = "patient-alerting/notifications"

// Publisher is the subset of mqtt.Client used by Sender.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Config holds MQTT broker settings.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	PublishTimeout time.Duration
}

// Connect opens an auto-reconnecting MQTT client.
func Connect(cfg Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Payload is the JSON message published for a notification.
type Payload struct {
	NotificationID string                 `json:"notification_id"`
	PatientID      string                 `json:"patient_id"`
	Subject        string                 `json:"subject"`
	Message        string                 `json:"message"`
	Priority       notifications.Priority `json:"priority"`
	RelatedAlertID string                 `json:"related_alert_id,omitempty"`
}

// Sender implements the Push channel.
type Sender struct {
	publisher   Publisher
	topicPrefix string
	timeout     time.Duration
}

// NewSender creates a push sender. Empty prefix and zero timeout use defaults.
func NewSender(publisher Publisher, topicPrefix string, timeout time.Duration) *Sender {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sender{
		publisher:   publisher,
		topicPrefix: strings.TrimRight(topicPrefix, "/"),
		timeout:     timeout,
	}
}

// Channel returns the channel this sender handles.
func (s *Sender) Channel() notifications.Channel {
	return notifications.ChannelPush
}

// Topic returns the topic a recipient subscribes to.
func (s *Sender) Topic(recipientID string) string {
	return s.topicPrefix + "/" + recipientID
}

// Send publishes the notification with QoS 1 and waits for the broker ack.
func (s *Sender) Send(ctx context.Context, n *notifications.Notification) error {
	if n.RecipientID == nil || *n.RecipientID == "" {
		return fmt.Errorf("recipient id is required")
	}

	p := Payload{
		NotificationID: n.ID,
		PatientID:      n.PatientID,
		Subject:        n.Subject,
		Message:        n.Message,
		Priority:       n.Priority,
	}
	if n.RelatedEntityID != nil {
		p.RelatedAlertID = *n.RelatedEntityID
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	topic := s.Topic(*n.RecipientID)
	token := s.publisher.Publish(topic, 1, false, data)

	wait := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < wait {
			wait = d
		}
	}
	if !token.WaitTimeout(wait) {
		return errors.New("push publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	slog.Info("Push notification delivered", "notification_id", n.ID, "topic", topic)
	return nil
}
