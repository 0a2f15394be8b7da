package kafka

import "time"

// Timeouts and intervals shared by every reader and writer in the platform.
const (
	// MaxPollWait bounds how long a fetch blocks waiting for new data.
	MaxPollWait = 500 * time.Millisecond
	// CommitInterval is zero so CommitMessages is synchronous.
	CommitInterval time.Duration = 0
	// WriteTimeout bounds a single synchronous produce call.
	WriteTimeout = 10 * time.Second
)

// Header keys carried on every event record.
const (
	HeaderRoutingKey      = "routing_key"
	HeaderEventType       = "event_type"
	HeaderSchemaVersion   = "schema_version"
	HeaderDeliveryAttempt = "delivery_attempt"
	// HeaderDeadLetterError holds the last handler error of a dead-lettered event.
	HeaderDeadLetterError = "dead_letter_error"
)

// DeadLetterSuffix names the dead-letter topic of a topic, e.g. "events.dlq".
const DeadLetterSuffix = ".dlq"
