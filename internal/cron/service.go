package cron

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/medcart-backend/pkg/logger"
	"github.com/angelmondragon/medcart-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// CycleReport summarises one pass over the registry.
type CycleReport struct {
	Skipped bool
	Ran     []string
	Failed  map[string]error
}

// OK reports whether the cycle ran and no job failed.
func (r CycleReport) OK() bool {
	return !r.Skipped && len(r.Failed) == 0
}

// Service runs every registered job once per interval. Only the replica
// holding the lock runs a cycle.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("cron: logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// RunOnce executes a single locked cycle. The error is reserved for lock
// failures; job failures are reported in the CycleReport.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	ok, err := s.lock.Acquire(ctx)
	if err != nil {
		return CycleReport{}, err
	}
	if !ok {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return CycleReport{Skipped: true}, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}()

	report := CycleReport{Failed: map[string]error{}}
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		report.Ran = append(report.Ran, job.Name())
		if err := s.runJob(ctx, job); err != nil {
			report.Failed[job.Name()] = err
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":   report.Ran,
		"failed": len(report.Failed),
	}), "cron cycle complete")
	return report, nil
}

// Run loops until ctx is canceled, running a cycle immediately and then once
// per interval.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle aborted", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx, cancel := context.WithTimeout(s.logg.WithField(ctx, "job", name), s.jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if s.metrics != nil {
		s.metrics.ObserveDuration(name, elapsed)
	}
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		if s.metrics != nil {
			s.metrics.IncFailure(name)
		}
		return err
	}
	s.logg.Info(jobCtx, "cron job done")
	if s.metrics != nil {
		s.metrics.IncSuccess(name)
	}
	return nil
}
