package sampler

import (
	"context"
	"sync/atomic"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/runnerr0/ulogme/internal/rawlog"
)

// DefaultWindowInterval is the polling period of the window sampler.
const DefaultWindowInterval = 2 * time.Second

// TitleSource reports the title of the focused window.
type TitleSource interface {
	Title(ctx context.Context) (string, error)
}

// WindowOptions configures a WindowSampler.
type WindowOptions struct {
	Appender Appender
	Titles   TitleSource
	// Lock is optional. Without it the sampler never enters StateLocked.
	Lock     *LockSignal
	Clock    quartz.Clock
	Interval time.Duration
	Logger   slog.Logger
}

// WindowSampler logs the focused window title whenever it changes.
type WindowSampler struct {
	appender Appender
	titles   TitleSource
	lock     *LockSignal
	clock    quartz.Clock
	interval time.Duration
	logger   slog.Logger

	state atomic.Int32
	last  string
}

// NewWindowSampler creates a WindowSampler.
func NewWindowSampler(opts WindowOptions) *WindowSampler {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultWindowInterval
	}
	lock := opts.Lock
	if lock == nil {
		lock = NewLockSignal()
	}
	return &WindowSampler{
		appender: opts.Appender,
		titles:   opts.Titles,
		lock:     lock,
		clock:    clock,
		interval: interval,
		logger:   opts.Logger,
	}
}

// State returns the current state.
func (s *WindowSampler) State() State { return State(s.state.Load()) }

// Run samples until ctx is cancelled, then appends an empty record marking
// the end of the activity and returns nil.
func (s *WindowSampler) Run(ctx context.Context) error {
	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateStopped))
	defer s.append(context.Background(), "")

	ticker := s.clock.NewTicker(s.interval, "sampler", "window")
	defer ticker.Stop()

	s.logger.Info(ctx, "window sampler started", slog.F("interval", s.interval))
	for {
		locked, changed := s.lock.State()
		if locked {
			if err := s.waitLocked(ctx); err != nil {
				return nil
			}
			continue
		}

		s.sample(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "window sampler stopping")
			return nil
		case <-ticker.C:
		case <-changed:
		}
	}
}

// waitLocked logs the lock sentinel once and blocks until the screen is
// unlocked. It returns ctx's error if stopped while locked.
func (s *WindowSampler) waitLocked(ctx context.Context) error {
	s.state.Store(int32(StateLocked))
	if s.last != rawlog.LockedScreenTitle {
		s.record(ctx, rawlog.LockedScreenTitle)
	}
	s.logger.Debug(ctx, "screen locked, pausing window sampling")
	if err := s.lock.WaitUnlocked(ctx); err != nil {
		return err
	}
	s.state.Store(int32(StateRunning))
	s.logger.Debug(ctx, "screen unlocked, resuming window sampling")
	return nil
}

func (s *WindowSampler) sample(ctx context.Context) {
	title, err := s.titles.Title(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Debug(ctx, "query focused window", slog.Error(err))
		}
		return
	}
	if title == "" || title == s.last {
		return
	}
	s.record(ctx, title)
}

func (s *WindowSampler) record(ctx context.Context, title string) {
	s.last = title
	s.append(ctx, title)
}

func (s *WindowSampler) append(ctx context.Context, payload string) {
	if err := s.appender.Append(rawlog.Window, s.clock.Now(), payload); err != nil {
		s.logger.Warn(ctx, "append window record", slog.Error(err))
	}
}
