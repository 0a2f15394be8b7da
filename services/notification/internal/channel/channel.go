// Package channel routes notifications to per-channel senders using the
// strategy pattern, with retry and backoff for transient failures.
package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/retry"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// Sender delivers notifications through one channel.
type Sender interface {
	// Channel returns the channel this sender handles.
	Channel() notifications.Channel

	// Send delivers the notification. Errors are classified by retry.IsRetryable.
	Send(ctx context.Context, n *notifications.Notification) error
}

// Registry manages channel senders.
type Registry struct {
	mu      sync.RWMutex
	senders map[notifications.Channel]Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[notifications.Channel]Sender),
	}
}

// Register registers a sender, replacing any sender for the same channel.
func (r *Registry) Register(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[s.Channel()] = s
}

// Get retrieves the sender for a channel.
func (r *Registry) Get(c notifications.Channel) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[c]
	return s, ok
}

// List returns the registered channels in name order.
func (r *Registry) List() []notifications.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	channels := make([]notifications.Channel, 0, len(r.senders))
	for c := range r.senders {
		channels = append(channels, c)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

// Deliverer implements notifications.Deliverer on top of a Registry.
type Deliverer struct {
	registry *Registry
	retryCfg retry.Config
}

// NewDeliverer creates a deliverer that retries transient sender failures.
func NewDeliverer(registry *Registry, retryCfg retry.Config) *Deliverer {
	return &Deliverer{registry: registry, retryCfg: retryCfg}
}

// Deliver sends n through the sender registered for its channel.
// A channel with no sender fails immediately with notifications.ErrUnknownChannel.
func (d *Deliverer) Deliver(ctx context.Context, n *notifications.Notification) error {
	sender, ok := d.registry.Get(n.Channel)
	if !ok {
		return fmt.Errorf("%w: %q", notifications.ErrUnknownChannel, n.Channel)
	}

	operation := fmt.Sprintf("send_%s_%s", n.Channel, n.ID)
	return retry.WithRetry(ctx, d.retryCfg, operation, func() error {
		return sender.Send(ctx, n)
	})
}

var _ notifications.Deliverer = (*Deliverer)(nil)
