// Package scheduler runs the periodic monitoring cycle: fetch each patient's
// recent observations, classify them and admit the resulting candidates.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/classifier"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/clinical"
)

// Defaults for Config.
const (
	DefaultInterval     = 5 * time.Minute
	DefaultLookback     = 24 * time.Hour
	DefaultPatientDelay = time.Second
)

// Custom metric names.
const (
	MetricCycles          = "monitor_cycles"
	MetricPatientsChecked = "patients_checked"
	MetricPatientsFailed  = "patients_failed"
	MetricCandidates      = "alert_candidates"
)

// Admitter admits classifier candidates as alerts.
type Admitter interface {
	Admit(ctx context.Context, c classifier.Candidate) (*alerts.Alert, error)
}

// Recorder is the subset of metrics the scheduler reports.
type Recorder interface {
	RecordError()
	IncrementCustom(name string)
}

type noOpRecorder struct{}

func (noOpRecorder) RecordError()             {}
func (noOpRecorder) IncrementCustom(_ string) {}

// Config controls cycle timing and concurrency.
type Config struct {
	// Interval is the wait between the end of one cycle and the start of the next.
	Interval time.Duration
	// Lookback is how far back observations are fetched.
	Lookback time.Duration
	// PatientDelay is the pause after each patient, per worker.
	PatientDelay time.Duration
	// Workers is the number of patients processed concurrently. Values below 2 mean sequential.
	Workers int
}

// CycleResult summarizes one monitoring cycle.
type CycleResult struct {
	Patients       int
	FailedPatients int
	Observations   int
	Candidates     int
	Created        int
	Suppressed     int
	PublishFailed  int
}

func (r *CycleResult) add(o patientResult) {
	r.Observations += o.observations
	r.Candidates += o.candidates
	r.Created += o.created
	r.Suppressed += o.suppressed
	r.PublishFailed += o.publishFailed
}

type patientResult struct {
	observations  int
	candidates    int
	created       int
	suppressed    int
	publishFailed int
}

// Scheduler drives periodic monitoring cycles.
type Scheduler struct {
	source   clinical.Source
	admitter Admitter
	metrics  Recorder
	cfg      Config
	now      func() time.Time
	done     chan struct{}
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithMetrics sets the metrics recorder.
func WithMetrics(m Recorder) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source used for lookback windows and freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler. Zero durations fall back to the package defaults.
func New(source clinical.Source, admitter Admitter, cfg Config, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.PatientDelay < 0 {
		cfg.PatientDelay = 0
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	s := &Scheduler{
		source:   source,
		admitter: admitter,
		metrics:  noOpRecorder{},
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the scheduler in a background goroutine until ctx is cancelled.
// It must be called at most once.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		s.Run(ctx)
	}()
}

// Wait blocks until a scheduler started with Start has returned.
func (s *Scheduler) Wait() {
	<-s.done
}

// Run executes a cycle immediately and then one cycle per Interval, measured
// from the end of the previous cycle. It returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("Starting monitoring scheduler",
		"interval", s.cfg.Interval,
		"lookback", s.cfg.Lookback,
		"patient_delay", s.cfg.PatientDelay,
		"workers", s.cfg.Workers,
	)

	for {
		result, err := s.RunCycle(ctx)
		if err != nil && ctx.Err() == nil {
			s.metrics.RecordError()
			slog.Error("Monitoring cycle failed", "error", err)
		} else if err == nil {
			slog.Info("Monitoring cycle completed",
				"patients", result.Patients,
				"failed_patients", result.FailedPatients,
				"observations", result.Observations,
				"candidates", result.Candidates,
				"alerts_created", result.Created,
				"alerts_suppressed", result.Suppressed,
			)
		}

		select {
		case <-ctx.Done():
			slog.Info("Monitoring scheduler stopped")
			return
		case <-time.After(s.cfg.Interval):
		}
	}
}

// RunCycle checks every patient once. A failing patient is logged and counted
// and does not stop the cycle. Cancellation stops the cycle between patients.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleResult, error) {
	var result CycleResult
	s.metrics.IncrementCustom(MetricCycles)

	patients, err := s.source.ListPatients(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list patients: %w", err)
	}
	slog.Debug("Monitoring cycle started", "patients", len(patients))

	var mu sync.Mutex
	record := func(patientID string, pr patientResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Patients++
		result.add(pr)
		s.metrics.IncrementCustom(MetricPatientsChecked)
		if err != nil {
			result.FailedPatients++
			s.metrics.IncrementCustom(MetricPatientsFailed)
			s.metrics.RecordError()
			slog.Error("Failed to monitor patient", "patient_id", patientID, "error", err)
		}
	}

	if s.cfg.Workers <= 1 {
		for i, p := range patients {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			pr, err := s.processPatient(ctx, p.ID)
			record(p.ID, pr, err)
			if i < len(patients)-1 && !s.pause(ctx) {
				return result, ctx.Err()
			}
		}
		return result, nil
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for patientID := range jobs {
				pr, err := s.processPatient(ctx, patientID)
				record(patientID, pr, err)
				s.pause(ctx)
			}
		}()
	}

dispatch:
	for _, p := range patients {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- p.ID:
		}
	}
	close(jobs)
	wg.Wait()

	return result, ctx.Err()
}

// pause sleeps PatientDelay. It returns false if ctx was cancelled first.
func (s *Scheduler) pause(ctx context.Context) bool {
	if s.cfg.PatientDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.PatientDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// processPatient evaluates one patient. Once started it runs to completion even
// if ctx is cancelled.
func (s *Scheduler) processPatient(ctx context.Context, patientID string) (patientResult, error) {
	var pr patientResult
	ctx = context.WithoutCancel(ctx)

	now := s.now()
	observations, err := s.source.ListRecentObservations(ctx, patientID, now.Add(-s.cfg.Lookback), now)
	if err != nil {
		return pr, fmt.Errorf("failed to fetch observations: %w", err)
	}
	pr.observations = len(observations)

	var errs []error
	for _, obs := range observations {
		for _, c := range classifier.Classify(obs, now) {
			pr.candidates++
			s.metrics.IncrementCustom(MetricCandidates)

			a, err := s.admitter.Admit(ctx, c)
			switch {
			case errors.Is(err, alerts.ErrPublishFailed):
				pr.created++
				pr.publishFailed++
				alertID := ""
				if a != nil {
					alertID = a.ID
				}
				slog.Warn("Alert created but not published",
					"alert_id", alertID,
					"patient_id", patientID,
					"error", err,
				)
			case err != nil:
				errs = append(errs, fmt.Errorf("observation %s: %w", obs.ID, err))
			case a == nil:
				pr.suppressed++
			default:
				pr.created++
				slog.Info("Alert raised",
					"alert_id", a.ID,
					"patient_id", patientID,
					"title", a.Title,
					"severity", a.Severity,
				)
			}
		}
	}
	return pr, errors.Join(errs...)
}
