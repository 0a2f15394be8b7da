package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/channel/inapp"
	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

// mockNotificationService keeps notifications in memory and applies the
// Pending/Sent/Failed/Cancelled transitions. Delivery fails when failDelivery is set.
type mockNotificationService struct {
	mu           sync.Mutex
	byID         map[string]*notifications.Notification
	failDelivery bool
	err          error
	pending      int64

	lastFilter notifications.ListFilter
	lastCreate notifications.CreateNotification
}

func newMockService(ns ...*notifications.Notification) *mockNotificationService {
	m := &mockNotificationService{byID: make(map[string]*notifications.Notification)}
	for _, n := range ns {
		m.byID[n.ID] = n
	}
	return m
}

func (m *mockNotificationService) Create(ctx context.Context, in notifications.CreateNotification) (*notifications.Notification, error) {
	m.lastCreate = in
	if m.err != nil {
		return nil, m.err
	}
	if in.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", notifications.ErrInvalidNotification)
	}
	return &notifications.Notification{ID: "n-new", PatientID: in.PatientID, Channel: in.Channel, Status: notifications.StatusPending}, nil
}

func (m *mockNotificationService) Get(ctx context.Context, id string) (*notifications.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	n, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", notifications.ErrNotFound, id)
	}
	cp := *n
	return &cp, nil
}

func (m *mockNotificationService) List(ctx context.Context, f notifications.ListFilter) (*notifications.ListResult, error) {
	m.lastFilter = f
	if m.err != nil {
		return nil, m.err
	}
	return &notifications.ListResult{Notifications: []*notifications.Notification{}, Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *mockNotificationService) ByPatient(ctx context.Context, patientID string, limit, offset int) (*notifications.ListResult, error) {
	return m.List(ctx, notifications.ListFilter{PatientID: patientID, Limit: limit, Offset: offset})
}

func (m *mockNotificationService) Failed(ctx context.Context, limit, offset int) (*notifications.ListResult, error) {
	return m.List(ctx, notifications.ListFilter{Status: notifications.StatusFailed, Limit: limit, Offset: offset})
}

func (m *mockNotificationService) CountPending(ctx context.Context) (int64, error) {
	return m.pending, m.err
}

func (m *mockNotificationService) Send(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", notifications.ErrNotFound, id)
	}
	if n.Status != notifications.StatusPending {
		return false, nil
	}
	if m.failDelivery {
		n.Status = notifications.StatusFailed
		n.RetryCount++
		return false, nil
	}
	n.Status = notifications.StatusSent
	return true, nil
}

func (m *mockNotificationService) Retry(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	n, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s", notifications.ErrNotFound, id)
	}
	if n.Status != notifications.StatusFailed {
		m.mu.Unlock()
		return false, nil
	}
	n.Status = notifications.StatusPending
	m.mu.Unlock()
	return m.Send(ctx, id)
}

func (m *mockNotificationService) Cancel(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", notifications.ErrNotFound, id)
	}
	if n.Status != notifications.StatusPending {
		return false, nil
	}
	n.Status = notifications.StatusCancelled
	return true, nil
}

type mockInbox struct {
	items     []inapp.Item
	err       error
	lastLimit int
}

func (m *mockInbox) Inbox(ctx context.Context, recipientID string, limit int) ([]inapp.Item, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if recipientID == "" {
		return nil, errors.New("recipient id is required")
	}
	return m.items, nil
}
