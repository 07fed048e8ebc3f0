// Package scheduler runs periodic jobs under a cluster-wide lock.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

// Job is one periodic task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Config struct {
	Name     string
	Interval time.Duration
	Jobs     []Job
	// Lock is optional; without it every replica runs every cycle.
	Lock    Lock
	Metrics *metrics.JobMetrics
	Logger  *logger.Logger
}

// Scheduler runs its jobs in order once per interval. A failing job is
// logged and does not stop the others.
type Scheduler struct {
	name     string
	interval time.Duration
	jobs     []Job
	lock     Lock
	metrics  *metrics.JobMetrics
	logg     *logger.Logger
}

func New(cfg Config) (*Scheduler, error) {
	switch {
	case cfg.Logger == nil:
		return nil, errors.New("logger required")
	case cfg.Interval <= 0:
		return nil, errors.New("interval must be positive")
	case len(cfg.Jobs) == 0:
		return nil, errors.New("at least one job required")
	}
	name := cfg.Name
	if name == "" {
		name = "scheduler"
	}
	return &Scheduler{
		name:     name,
		interval: cfg.Interval,
		jobs:     cfg.Jobs,
		lock:     cfg.Lock,
		metrics:  cfg.Metrics,
		logg:     cfg.Logger,
	}, nil
}

func (s *Scheduler) Name() string { return s.name }

// Run ticks until ctx is done. The first cycle starts after one interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = s.logg.WithField(ctx, "scheduler", s.name)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single cycle when the lock is free.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			s.logg.Error(ctx, "scheduler lock unavailable", err)
			return
		}
		if !ok {
			s.logg.Debug(ctx, "cycle held by another replica")
			return
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logg.Error(ctx, "failed to release scheduler lock", err)
			}
		}()
	}

	for _, job := range s.jobs {
		jobCtx := s.logg.WithField(ctx, "job", job.Name())
		start := time.Now()
		err := job.Run(jobCtx)
		elapsed := time.Since(start)
		s.metrics.Observe(job.Name(), elapsed, err)

		jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.logg.Error(jobCtx, "job failed", err)
			continue
		}
		s.logg.Debug(jobCtx, "job completed")
	}
}
