// Package config provides configuration parsing and validation for the monitoring service.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration parameters for the monitoring service.
type Config struct {
	HTTPPort    string
	PostgresDSN string
	AutoMigrate bool

	KafkaBrokers string
	Topic        string
	MockProducer bool

	PatientsURL   string
	ClinicalURL   string
	ClinicalMock  bool
	MockPatients  int
	SourceTimeout time.Duration

	// RedisAddr is optional; metrics are kept in memory when empty.
	RedisAddr string

	MonitorInterval time.Duration
	Lookback        time.Duration
	PatientDelay    time.Duration
	MonitorWorkers  int
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
	if c.Topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if !c.MockProducer && c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.ClinicalMock {
		if c.MockPatients <= 0 {
			return fmt.Errorf("mock-patients must be positive")
		}
	} else {
		if c.PatientsURL == "" {
			return fmt.Errorf("patients-url cannot be empty")
		}
		if c.ClinicalURL == "" {
			return fmt.Errorf("clinical-url cannot be empty")
		}
		if c.SourceTimeout <= 0 {
			return fmt.Errorf("source-timeout must be positive")
		}
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor-interval must be positive")
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	if c.PatientDelay < 0 {
		return fmt.Errorf("patient-delay cannot be negative")
	}
	if c.MonitorWorkers <= 0 {
		return fmt.Errorf("monitor-workers must be positive")
	}
	return nil
}
