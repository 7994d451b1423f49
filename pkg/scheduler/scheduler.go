// Package scheduler runs the capture and promotion jobs on a fixed
// cadence. Jobs are short-lived batch runs, not daemons; a panicking or
// failing run is logged and retried on the next tick.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openclaw/memtier/pkg/errors"
	"github.com/openclaw/memtier/pkg/log"
)

// jobTimeout bounds a single job run.
const jobTimeout = 10 * time.Minute

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with panic recovery and per-job logging.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) *Scheduler {
	adapter := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter)),
		),
	}
}

// Add registers a job under a standard five-field cron spec.
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		log.InfoContext(ctx, "Job starting", "job", name)
		if err := job(ctx); err != nil {
			log.ErrorContext(ctx, "Job failed", "job", name, "duration", time.Since(start), "error", err)
			return
		}
		log.InfoContext(ctx, "Job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return errors.Wrap(err, "invalid schedule %q for job %s", spec, name)
	}
	return nil
}

// Start begins running jobs in their own goroutines.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to the cron logging interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
