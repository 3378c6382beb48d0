package core

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTickInterval is the scheduler heartbeat when none is given.
const DefaultTickInterval = time.Minute

// Scheduler runs background jobs of the long-running server, such as cache
// index maintenance.
type Scheduler struct {
	interval time.Duration
	jobs     []Job
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler ticking every interval.
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, logger: logger}
}

// AddJob registers a job.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs the main loop. It blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started", "interval", s.interval, "jobs", len(s.jobs))
	s.tick(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	for _, job := range s.jobs {
		if job.ShouldFire(now) {
			s.logger.Debug("Job firing", "job", job.Name())
			// Fire and forget
			go job.Run(ctx)
		}
	}
}
