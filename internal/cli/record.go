package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"cdr.dev/slog/v3"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/ulogme/internal/sampler"
)

// Execute implements the go-flags Commander interface for RecordCommand.
func (c *RecordCommand) Execute(args []string) error {
	e, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx, e)
}

// run starts the enabled samplers, and the server if requested, and waits
// for all of them. A missing keyboard aborts the whole recorder.
func (c *RecordCommand) run(ctx context.Context, e *env) error {
	withWindow := e.cfg.Sampling.EnableWindow && !c.NoWindow
	withKeys := e.cfg.Sampling.EnableKeys && !c.NoKeys
	if !withWindow && !withKeys && !c.Serve {
		return errors.New("nothing to record: window and keystroke samplers are both disabled")
	}

	lock, err := sampler.AcquireDirLock(e.logDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	g, ctx := errgroup.WithContext(ctx)

	// Serving is set up first so a bad address or schedule fails before any
	// sampler goroutine holds the log directory.
	if c.Serve {
		if err := startServing(ctx, g, e, e.cfg.Addr()); err != nil {
			return err
		}
	}

	if withWindow {
		lockSig := sampler.NewLockSignal()
		if e.cfg.Sampling.LockDetection && e.locks != nil {
			g.Go(func() error {
				if err := e.locks.Watch(ctx, lockSig); err != nil {
					e.logger.Warn(ctx, "screen lock detection unavailable", slog.Error(err))
				}
				return nil
			})
		}
		ws := sampler.NewWindowSampler(sampler.WindowOptions{
			Appender: e.writer,
			Titles:   e.titles,
			Lock:     lockSig,
			Clock:    e.clock,
			Interval: e.cfg.Sampling.WindowInterval,
			Logger:   e.logger.Named("window"),
		})
		g.Go(func() error { return ws.Run(ctx) })
	}

	if withKeys {
		ks := sampler.NewKeyfreqSampler(sampler.KeyfreqOptions{
			Appender: e.writer,
			Detector: e.keyboard,
			Listener: e.keyboard,
			Clock:    e.clock,
			Window:   e.cfg.Sampling.KeyfreqWindow,
			Logger:   e.logger.Named("keyfreq"),
		})
		g.Go(func() error { return ks.Run(ctx) })
	}

	e.logger.Info(ctx, "recording",
		slog.F("log_dir", e.logDir),
		slog.F("window", withWindow),
		slog.F("keys", withKeys),
		slog.F("serve", c.Serve),
	)
	return g.Wait()
}
