package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs background jobs on cron specs. A job still running when its
// next tick arrives is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// NewScheduler creates a scheduler that logs through logger.
func NewScheduler(logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	return &Scheduler{cron: c, logger: logger}
}

// Add registers job under name. Each run gets a context bounded by timeout.
// PRE: spec is a standard 5-field cron spec or descriptor
// POST: job scheduled, or an error naming the bad spec
func (s *Scheduler) Add(name, spec string, timeout time.Duration, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		started := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled_job_failed", "job", name, "error", err)
			return
		}
		s.logger.Debug("scheduled_job_done", "job", name, "duration_ms", time.Since(started).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.logger.Info("scheduled_job", "job", name, "schedule", spec)
	return nil
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RenewalSweepJob adapts the sweep to a Job that sweeps as of today.
func RenewalSweepJob(deps RenewalSweepDeps) Job {
	return func(ctx context.Context) error {
		_, err := ExecuteRenewalSweep(ctx, RenewalSweepInput{}, deps)
		return err
	}
}
