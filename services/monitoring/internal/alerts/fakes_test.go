package alerts

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/events"
)

// FakeStore is an in-memory Store that enforces optimistic versions.
type FakeStore struct {
	mu        sync.Mutex
	Alerts    map[string]*Alert
	InsertErr error
	GetErr    error
	UpdateErr error
	RecentErr error
	Inserts   int
	Updates   int
}

func NewFakeStore(seed ...*Alert) *FakeStore {
	f := &FakeStore{Alerts: make(map[string]*Alert)}
	for _, a := range seed {
		cp := *a
		f.Alerts[a.ID] = &cp
	}
	return f
}

func (f *FakeStore) InsertAlert(ctx context.Context, a *Alert) (*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return nil, f.InsertErr
	}
	f.Inserts++
	cp := *a
	f.Alerts[a.ID] = &cp
	out := cp
	return &out, nil
}

func (f *FakeStore) GetAlert(ctx context.Context, id string) (*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	a, ok := f.Alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (f *FakeStore) UpdateAlert(ctx context.Context, a *Alert) (*Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	stored, ok := f.Alerts[a.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}
	if stored.Version != a.Version {
		return nil, fmt.Errorf("%w: expected version %d", ErrConcurrentUpdate, a.Version)
	}
	f.Updates++
	cp := *a
	cp.Version++
	f.Alerts[a.ID] = &cp
	out := cp
	return &out, nil
}

func (f *FakeStore) ListAlerts(ctx context.Context, filter ListFilter) (*ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Alert
	for _, a := range f.Alerts {
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.ActiveOnly && !a.IsActive() {
			continue
		}
		if filter.From != nil && a.AlertDateTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && a.AlertDateTime.After(*filter.To) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.SortBy == SortBySeverity && out[i].Severity != out[j].Severity {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		return out[i].AlertDateTime.After(out[j].AlertDateTime)
	})
	return &ListResult{Alerts: out, Total: int64(len(out)), Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (f *FakeStore) RecentAlertsByPatient(ctx context.Context, patientID string, limit int) ([]*Alert, error) {
	if f.RecentErr != nil {
		return nil, f.RecentErr
	}
	res, _ := f.ListAlerts(ctx, ListFilter{PatientID: patientID})
	if len(res.Alerts) > limit {
		return res.Alerts[:limit], nil
	}
	return res.Alerts, nil
}

func (f *FakeStore) CountActiveAlerts(ctx context.Context, patientID string) (int64, error) {
	res, _ := f.ListAlerts(ctx, ListFilter{PatientID: patientID, ActiveOnly: true})
	return res.Total, nil
}

func (f *FakeStore) DeleteAlert(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Alerts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(f.Alerts, id)
	return nil
}

// FakePublisher records published events.
type FakePublisher struct {
	mu         sync.Mutex
	Published  []*events.AlertCreatedEvent
	PublishErr error
}

func (f *FakePublisher) PublishAlertCreated(ctx context.Context, event *events.AlertCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.Published = append(f.Published, event)
	return nil
}

// FakeMetrics counts recorded metrics.
type FakeMetrics struct {
	mu        sync.Mutex
	Received  int
	Processed int
	Published int
	Errors    int
	Custom    map[string]int
}

func (f *FakeMetrics) RecordReceived()                 { f.mu.Lock(); f.Received++; f.mu.Unlock() }
func (f *FakeMetrics) RecordProcessed(_ time.Duration) { f.mu.Lock(); f.Processed++; f.mu.Unlock() }
func (f *FakeMetrics) RecordPublished()                { f.mu.Lock(); f.Published++; f.mu.Unlock() }
func (f *FakeMetrics) RecordError()                    { f.mu.Lock(); f.Errors++; f.mu.Unlock() }
func (f *FakeMetrics) IncrementCustom(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Custom == nil {
		f.Custom = make(map[string]int)
	}
	f.Custom[name]++
}
