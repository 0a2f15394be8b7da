package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// FakeStore is an in-memory Store with the same conditional-transition semantics
// as the database store.
type FakeStore struct {
	mu            sync.Mutex
	Notifications map[string]*Notification
	InsertErr     error
	TransitionErr error
	Transitions   int
}

func NewFakeStore(seed ...*Notification) *FakeStore {
	f := &FakeStore{Notifications: make(map[string]*Notification)}
	for _, n := range seed {
		cp := *n
		f.Notifications[n.ID] = &cp
	}
	return f
}

func (f *FakeStore) InsertNotification(ctx context.Context, n *Notification) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return nil, f.InsertErr
	}
	cp := *n
	f.Notifications[n.ID] = &cp
	out := cp
	return &out, nil
}

func (f *FakeStore) InsertNotificationIdempotent(ctx context.Context, n *Notification) (*Notification, bool, error) {
	f.mu.Lock()
	if f.InsertErr != nil {
		f.mu.Unlock()
		return nil, false, f.InsertErr
	}
	for _, existing := range f.Notifications {
		if sameAlertRecipient(existing, n) {
			f.mu.Unlock()
			return nil, false, nil
		}
	}
	f.mu.Unlock()
	stored, err := f.InsertNotification(ctx, n)
	return stored, err == nil, err
}

func sameAlertRecipient(a, b *Notification) bool {
	return a.RelatedEntityType != nil && b.RelatedEntityType != nil &&
		*a.RelatedEntityType == RelatedEntityAlert && *b.RelatedEntityType == RelatedEntityAlert &&
		a.RelatedEntityID != nil && b.RelatedEntityID != nil &&
		*a.RelatedEntityID == *b.RelatedEntityID &&
		a.RecipientType == b.RecipientType
}

func (f *FakeStore) GetNotification(ctx context.Context, id string) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.Notifications[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *n
	return &cp, nil
}

func (f *FakeStore) GetAlertNotification(ctx context.Context, alertID, recipientType string) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entity := RelatedEntityAlert
	probe := &Notification{RelatedEntityID: &alertID, RelatedEntityType: &entity, RecipientType: recipientType}
	for _, n := range f.Notifications {
		if sameAlertRecipient(n, probe) {
			cp := *n
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: alert %s recipient %s", ErrNotFound, alertID, recipientType)
}

func (f *FakeStore) TransitionNotification(ctx context.Context, n *Notification, from Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TransitionErr != nil {
		return false, f.TransitionErr
	}
	stored, ok := f.Notifications[n.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	f.Transitions++
	stored.Status = n.Status
	stored.SentAt = n.SentAt
	stored.ErrorMessage = n.ErrorMessage
	stored.RetryCount = n.RetryCount
	stored.UpdatedAt = n.UpdatedAt
	return true, nil
}

func (f *FakeStore) sorted(match func(*Notification) bool, newestFirst bool) []*Notification {
	var out []*Notification
	for _, n := range f.Notifications {
		if match(n) {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (f *FakeStore) ListNotifications(ctx context.Context, filter ListFilter) (*ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sorted(func(n *Notification) bool {
		return (filter.PatientID == "" || n.PatientID == filter.PatientID) &&
			(filter.Status == "" || n.Status == filter.Status) &&
			(filter.Channel == "" || n.Channel == filter.Channel)
	}, true)
	total := len(all)
	if filter.Offset < len(all) {
		all = all[filter.Offset:]
	} else {
		all = nil
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return &ListResult{Notifications: all, Total: int64(total), Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (f *FakeStore) ListDue(ctx context.Context, limit int) ([]*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sorted(func(n *Notification) bool { return n.Status == StatusPending }, false)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeStore) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sorted(func(n *Notification) bool {
		return n.Status == StatusFailed && n.RetryCount < maxRetries
	}, false)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeStore) CountByStatus(ctx context.Context, status Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, v := range f.Notifications {
		if v.Status == status {
			n++
		}
	}
	return n, nil
}

// FakeDeliverer fails for channels listed in FailChannels.
type FakeDeliverer struct {
	mu           sync.Mutex
	FailChannels map[Channel]error
	Delivered    []string
	// Before runs before each delivery, e.g. to simulate a concurrent cancel.
	Before func(n *Notification)
}

func (f *FakeDeliverer) Deliver(ctx context.Context, n *Notification) error {
	if f.Before != nil {
		f.Before(n)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailChannels[n.Channel]; ok {
		return err
	}
	if n.Channel == "" {
		return errors.New("no channel")
	}
	f.Delivered = append(f.Delivered, n.ID)
	return nil
}

// FakeMetrics counts recorded events.
type FakeMetrics struct {
	mu     sync.Mutex
	Sent   int
	Failed int
	Errors int
	Custom map[string]int
}

func (f *FakeMetrics) RecordProcessed(_ time.Duration) {}
func (f *FakeMetrics) RecordError()                    { f.mu.Lock(); f.Errors++; f.mu.Unlock() }
func (f *FakeMetrics) RecordSent()                     { f.mu.Lock(); f.Sent++; f.mu.Unlock() }
func (f *FakeMetrics) RecordFailed()                   { f.mu.Lock(); f.Failed++; f.mu.Unlock() }
func (f *FakeMetrics) IncrementCustom(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Custom == nil {
		f.Custom = make(map[string]int)
	}
	f.Custom[name]++
}
