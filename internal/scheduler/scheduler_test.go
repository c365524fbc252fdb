package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(Options{
		Location: time.UTC,
		Timeout:  time.Second,
		Logger:   slogtest.Make(t, nil),
	})
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler(t)
	err := s.AddJob("refresh", "every fifteen minutes", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh")
	assert.Empty(t, s.ListJobs())
}

func TestRunSchedulesJobs(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.AddJob("refresh", "*/15 * * * *", func(context.Context) error { return nil }))

	// Entries are only scheduled once the cron is started.
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		jobs := s.ListJobs()
		return len(jobs) == 1 && !jobs[0].NextRun.IsZero()
	}, 5*time.Second, 10*time.Millisecond)

	jobs := s.ListJobs()
	assert.Equal(t, "refresh", jobs[0].Name)
	assert.Zero(t, jobs[0].NextRun.Minute()%15)

	cancel()
	require.NoError(t, <-done)
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := newTestScheduler(t)

	var deadline atomic.Bool
	err := s.RunNow(context.Background(), "refresh", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadline.Store(ok)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, deadline.Load())

	boom := errors.New("boom")
	err = s.RunNow(context.Background(), "refresh", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
