// Package logging builds the process logger from the logging config: a
// human-readable sink on stderr plus an optional rotated file sink.
package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/runnerr0/ulogme/internal/config"
)

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a logger writing to stderr and, when cfg.File is set, to a
// rotated log file. verbose forces debug level. The returned func closes the
// file sink.
func New(stderr io.Writer, cfg config.LoggingConfig, verbose bool) (slog.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return slog.Logger{}, func() {}, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	sinks := []slog.Sink{sloghuman.Sink(stderr)}
	closeLog := func() {}

	if cfg.File != "" {
		path, err := config.ExpandPath(cfg.File)
		if err != nil {
			return slog.Logger{}, closeLog, fmt.Errorf("resolve log file: %w", err)
		}
		w := &closeGuard{w: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
		}}
		sinks = append(sinks, sloghuman.Sink(w))
		closeLog = func() { _ = w.Close() }
	}

	return slog.Make(sinks...).Leveled(level), closeLog, nil
}

// closeGuard rejects writes after Close. lumberjack re-opens its file on
// every Write, so a late log line would otherwise resurrect it.
type closeGuard struct {
	w io.WriteCloser

	mu     sync.Mutex
	closed bool
}

func (c *closeGuard) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.w.Write(p)
}

func (c *closeGuard) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.w.Close()
}
