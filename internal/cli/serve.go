package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"cdr.dev/slog/v3"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/ulogme/internal/scheduler"
	"github.com/runnerr0/ulogme/internal/server"
	"github.com/runnerr0/ulogme/internal/storage"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	e, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	addr := e.cfg.Addr()
	if c.Port != 0 {
		addr = net.JoinHostPort(e.cfg.Server.Host, strconv.Itoa(c.Port))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if err := startServing(ctx, g, e, addr); err != nil {
		return err
	}
	return g.Wait()
}

// startServing listens on addr, refreshes the exports once, then adds the
// HTTP server and the refresh scheduler to g. Nothing is added to g unless
// every step succeeds.
func startServing(ctx context.Context, g *errgroup.Group, e *env, addr string) error {
	if err := os.MkdirAll(e.renderDir, 0o755); err != nil {
		return fmt.Errorf("create render dir: %w", err)
	}
	sched := scheduler.New(scheduler.Options{
		Timeout: e.cfg.Refresh.Timeout,
		Logger:  e.logger.Named("scheduler"),
	})
	refresh := func(trigger storage.Trigger) scheduler.Job {
		return func(ctx context.Context) error {
			_, err := e.svc.RebuildAll(ctx, trigger)
			return err
		}
	}
	if e.cfg.Refresh.Schedule != "" {
		if err := sched.AddJob("refresh", e.cfg.Refresh.Schedule, refresh(storage.TriggerSchedule)); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := sched.RunNow(ctx, "refresh", refresh(storage.TriggerRefresh)); err != nil {
		e.logger.Warn(ctx, "initial refresh failed", slog.Error(err))
	}

	srv := server.New(server.Options{
		Addr:       addr,
		RenderDir:  e.renderDir,
		Controller: e.svc,
		Logger:     e.logger.Named("server"),
	})
	g.Go(func() error { return srv.Serve(ctx, ln) })
	g.Go(func() error { return sched.Run(ctx) })
	return nil
}
