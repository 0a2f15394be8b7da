// Package config provides configuration parsing and validation for the notification service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel"
)

// Email provider names accepted by -email-provider.
var emailProviders = []string{"smtp", "ses", "resend"}

// Config holds all configuration parameters for the notification service.
type Config struct {
	HTTPPort    string
	PostgresDSN string
	AutoMigrate bool

	KafkaBrokers        string
	Topic               string
	GroupID             string
	BindingKeys         string
	MaxDeliveryAttempts int
	RequeueDelay        time.Duration
	DeadLetterTopic     string

	ChannelPolicy string

	RetryInterval  time.Duration
	RetryBatchSize int
	RetryPacing    time.Duration
	MaxAutoRetries int

	// RedisAddr is optional; without it metrics stay in memory and the InApp channel is disabled.
	RedisAddr string

	EmailFrom     string
	EmailProvider string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	SESRegion     string
	ResendAPIKey  string

	// SMSGatewayURL is optional; the SMS channel is disabled when empty.
	SMSGatewayURL string
	SMSAPIKey     string
	SMSFrom       string
	SMSTimeout    time.Duration

	// MQTTBroker is optional; the Push channel is disabled when empty.
	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
}

// BindingKeyList splits BindingKeys on commas, dropping blanks.
func (c *Config) BindingKeyList() []string {
	var keys []string
	for _, k := range strings.Split(c.BindingKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if c.GroupID == "" {
		return fmt.Errorf("group-id cannot be empty")
	}
	if len(c.BindingKeyList()) == 0 {
		return fmt.Errorf("binding-keys cannot be empty")
	}
	if c.MaxDeliveryAttempts <= 0 {
		return fmt.Errorf("max-delivery-attempts must be positive")
	}
	if c.RequeueDelay < 0 {
		return fmt.Errorf("requeue-delay cannot be negative")
	}

	policy, err := channel.ParsePolicy(c.ChannelPolicy)
	if err != nil {
		return fmt.Errorf("channel-policy: %w", err)
	}

	if c.RetryInterval <= 0 {
		return fmt.Errorf("retry-interval must be positive")
	}
	if c.RetryBatchSize <= 0 {
		return fmt.Errorf("retry-batch-size must be positive")
	}
	if c.RetryPacing < 0 {
		return fmt.Errorf("retry-pacing cannot be negative")
	}
	if c.MaxAutoRetries < 0 {
		return fmt.Errorf("max-auto-retries cannot be negative")
	}

	if c.EmailProvider != "" && !validEmailProvider(c.EmailProvider) {
		return fmt.Errorf("email-provider must be one of: %s", strings.Join(emailProviders, ", "))
	}
	if c.SMTPHost != "" && c.SMTPPort <= 0 {
		return fmt.Errorf("smtp-port must be positive")
	}
	if c.SMSGatewayURL != "" && c.SMSTimeout <= 0 {
		return fmt.Errorf("sms-timeout must be positive")
	}
	if c.MQTTBroker != "" && c.MQTTClientID == "" {
		return fmt.Errorf("mqtt-client-id cannot be empty")
	}

	if policy == channel.PolicyProduction {
		if c.EmailFrom == "" {
			return fmt.Errorf("email-from cannot be empty")
		}
		if c.SMTPHost == "" && c.SESRegion == "" && c.ResendAPIKey == "" {
			return fmt.Errorf("production channel policy requires smtp-host, ses-region or resend-api-key")
		}
	}
	return nil
}

func validEmailProvider(name string) bool {
	for _, p := range emailProviders {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}
