// Package scheduler runs periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/robfig/cron/v3"
)

// DefaultTimeout bounds a single job run.
const DefaultTimeout = 5 * time.Minute

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  slog.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// Options configures a Scheduler.
type Options struct {
	// Location defaults to time.Local.
	Location *time.Location
	Timeout  time.Duration
	Logger   slog.Logger
}

// New creates a new scheduler. Runs of the same job never overlap.
func New(opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cl := cronLogger{logger: opts.Logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{
		cron:    c,
		timeout: timeout,
		logger:  opts.Logger,
		jobs:    make(map[string]cron.EntryID),
	}
}

// AddJob adds a job with a standard five-field cron schedule,
// e.g. "*/15 * * * *".
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(context.Background(), name, job); err != nil {
			s.logger.Warn(context.Background(), "scheduled job failed",
				slog.F("job", name), slog.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()
	s.logger.Info(context.Background(), "added job", slog.F("job", name), slog.F("schedule", schedule))
	return nil
}

// RunNow immediately executes a job with the configured timeout.
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.run(ctx, name, job)
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Debug(ctx, "starting job", slog.F("job", name))
	if err := job(ctx); err != nil {
		return err
	}
	s.logger.Debug(ctx, "job completed", slog.F("job", name), slog.F("elapsed", time.Since(start)))
	return nil
}

// Run starts the scheduler, blocks until ctx is done and then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	for _, job := range s.ListJobs() {
		s.logger.Info(ctx, "job scheduled", slog.F("job", job.Name), slog.F("next_run", job.NextRun))
	}
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))
	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), "cron: "+msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(context.Background(), "cron: "+msg, append(fields(keysAndValues), slog.Error(err))...)
}

func fields(kv []any) []slog.Field {
	out := make([]slog.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, slog.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
