package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PMCTL_MONITORING_URL.
const EnvPrefix = "PMCTL"

// Setting keys. They double as flag names and config file keys.
const (
	KeyMonitoringURL   = "monitoring-url"
	KeyNotificationURL = "notification-url"
	KeyTimeout         = "timeout"
	KeyNoColor         = "no-color"
)

// Config holds the resolved CLI settings.
type Config struct {
	MonitoringURL   string
	NotificationURL string
	Timeout         time.Duration
	NoColor         bool
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyMonitoringURL, "http://localhost:8080")
	v.SetDefault(KeyNotificationURL, "http://localhost:8081")
	v.SetDefault(KeyTimeout, 10*time.Second)
	v.SetDefault(KeyNoColor, false)
	return v
}

// readConfigFile loads an explicit config file, or ~/.pmctl.yaml when it exists.
func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigName(".pmctl")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// configFrom resolves settings with precedence flag > env > file > default.
func configFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		MonitoringURL:   strings.TrimSpace(v.GetString(KeyMonitoringURL)),
		NotificationURL: strings.TrimSpace(v.GetString(KeyNotificationURL)),
		Timeout:         v.GetDuration(KeyTimeout),
		NoColor:         v.GetBool(KeyNoColor),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.MonitoringURL == "" {
		return fmt.Errorf("monitoring-url cannot be empty")
	}
	if c.NotificationURL == "" {
		return fmt.Errorf("notification-url cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
