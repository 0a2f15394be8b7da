package notifications

import "errors"

var (
	// ErrNotFound is returned when a notification does not exist.
	ErrNotFound = errors.New("notification not found")

	// ErrInvalidNotification is returned when a create request fails validation.
	ErrInvalidNotification = errors.New("invalid notification")

	// ErrUnknownChannel is returned by a deliverer that has no sender for a channel.
	ErrUnknownChannel = errors.New("unknown notification channel")
)
