package sampler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/runnerr0/ulogme/internal/rawlog"
)

// DefaultKeyfreqWindow is the length of one keystroke counting window.
const DefaultKeyfreqWindow = 10 * time.Second

// ErrNoKeyboard is returned by Run when no keyboard device can be found.
var ErrNoKeyboard = errors.New("no keyboard device found")

// KeyboardDetector finds the keyboard device to listen on.
type KeyboardDetector interface {
	Detect(ctx context.Context) (string, error)
}

// KeyListener counts key releases on device until ctx is cancelled. A
// cancelled listener returns its count and a nil error.
type KeyListener interface {
	Listen(ctx context.Context, device string) (int, error)
}

// KeyfreqOptions configures a KeyfreqSampler.
type KeyfreqOptions struct {
	Appender Appender
	Detector KeyboardDetector
	Listener KeyListener
	Clock    quartz.Clock
	Window   time.Duration
	Logger   slog.Logger
}

// KeyfreqSampler logs the number of keystrokes per window.
type KeyfreqSampler struct {
	appender Appender
	detector KeyboardDetector
	listener KeyListener
	clock    quartz.Clock
	window   time.Duration
	logger   slog.Logger

	state atomic.Int32
}

// NewKeyfreqSampler creates a KeyfreqSampler.
func NewKeyfreqSampler(opts KeyfreqOptions) *KeyfreqSampler {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultKeyfreqWindow
	}
	return &KeyfreqSampler{
		appender: opts.Appender,
		detector: opts.Detector,
		listener: opts.Listener,
		clock:    clock,
		window:   window,
		logger:   opts.Logger,
	}
}

// State returns the current state.
func (s *KeyfreqSampler) State() State { return State(s.state.Load()) }

// Run detects the keyboard and counts keystrokes window by window until ctx
// is cancelled. The count of the window in progress at cancellation is
// still logged. Run only fails if no keyboard is found.
func (s *KeyfreqSampler) Run(ctx context.Context) error {
	device, err := s.detector.Detect(ctx)
	if err != nil {
		s.state.Store(int32(StateStopped))
		if errors.Is(err, ErrNoKeyboard) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNoKeyboard, err)
	}

	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateStopped))

	s.logger.Info(ctx, "keyfreq sampler started",
		slog.F("device", device),
		slog.F("window", s.window),
	)
	for {
		if ctx.Err() != nil {
			return nil
		}
		count, stopped, err := s.listen(ctx, device)
		if err != nil {
			s.logger.Warn(ctx, "keystroke listener failed",
				slog.F("device", device), slog.F("counted", count), slog.Error(err))
		}
		if count > 0 {
			if err := s.appender.Append(rawlog.Keyfreq, s.clock.Now(), strconv.Itoa(count)); err != nil {
				s.logger.Warn(ctx, "append keyfreq record", slog.Error(err))
			}
		}
		if stopped {
			s.logger.Info(ctx, "keyfreq sampler stopping")
			return nil
		}
	}
}

type listenResult struct {
	count int
	err   error
}

// listen runs one counting window. It ends when the timer fires or ctx is
// done; stopped reports the latter. A listener that exits early does not
// shorten the window.
func (s *KeyfreqSampler) listen(ctx context.Context, device string) (count int, stopped bool, err error) {
	timer := s.clock.NewTimer(s.window, "sampler", "keyfreq")
	defer timer.Stop()

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan listenResult, 1)
	go func() {
		n, err := s.listener.Listen(lctx, device)
		done <- listenResult{count: n, err: err}
	}()

	var res listenResult
	select {
	case <-timer.C:
		cancel()
		res = <-done
	case <-ctx.Done():
		stopped = true
		cancel()
		res = <-done
	case res = <-done:
		select {
		case <-timer.C:
		case <-ctx.Done():
			stopped = true
		}
	}
	return res.count, stopped, res.err
}
