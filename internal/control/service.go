// Package control exposes the three operations the UI and CLI drive:
// rebuild the exports, record a note and set the day's blog. Every
// mutating operation ends with a rebuild so the exports reflect the logs.
package control

import (
	"context"
	"fmt"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"

	"github.com/runnerr0/ulogme/internal/aggregate"
	"github.com/runnerr0/ulogme/internal/rawlog"
	"github.com/runnerr0/ulogme/internal/storage"
)

// Service ties the log writer, aggregation engine and history store together.
type Service struct {
	writer  *rawlog.Writer
	engine  *aggregate.Engine
	history storage.Store
	clock   quartz.Clock
	logger  slog.Logger
}

// Options configures a Service. History may be nil.
type Options struct {
	Writer  *rawlog.Writer
	Engine  *aggregate.Engine
	History storage.Store
	Clock   quartz.Clock
	Logger  slog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Service{
		writer:  opts.Writer,
		engine:  opts.Engine,
		history: opts.History,
		clock:   clock,
		logger:  opts.Logger,
	}
}

// Engine returns the aggregation engine.
func (s *Service) Engine() *aggregate.Engine { return s.engine }

// History returns the history store, or nil.
func (s *Service) History() storage.Store { return s.history }

// RebuildAll runs one aggregation pass and records it in the history.
func (s *Service) RebuildAll(ctx context.Context, trigger storage.Trigger) (*aggregate.Result, error) {
	start := s.clock.Now()
	res, err := s.engine.Rebuild(ctx)

	run := &storage.Run{
		StartedAt: start,
		Trigger:   trigger,
		Duration:  s.clock.Since(start),
	}
	if res != nil {
		run.Days = len(res.Days)
		run.Rewritten = len(res.Rewritten)
		run.Skipped = len(res.Skipped)
		run.BadLines = res.TotalBadLines()
	}
	if err != nil {
		run.Error = err.Error()
	}
	s.recordRun(ctx, run)

	if err != nil {
		s.logger.Error(ctx, "rebuild failed", slog.F("trigger", trigger), slog.Error(err))
		return res, fmt.Errorf("rebuild exports: %w", err)
	}
	s.logger.Info(ctx, "rebuilt exports",
		slog.F("trigger", trigger),
		slog.F("days", run.Days),
		slog.F("rewritten", run.Rewritten),
		slog.F("bad_lines", run.BadLines),
	)
	return res, nil
}

// RecordNote appends a note at instant (now if zero) and rebuilds.
func (s *Service) RecordNote(ctx context.Context, instant time.Time, text string) error {
	if instant.IsZero() {
		instant = s.clock.Now()
	}
	if err := s.writer.Append(rawlog.Notes, instant, text); err != nil {
		return fmt.Errorf("record note: %w", err)
	}
	s.recordAction(ctx, &storage.Action{
		Kind:   storage.ActionNote,
		Day:    s.writer.Day(instant).T0(),
		Detail: text,
		At:     s.clock.Now(),
	})
	_, err := s.RebuildAll(ctx, storage.TriggerNote)
	return err
}

// SetBlog replaces the blog of the day owning instant (now if zero) and
// rebuilds.
func (s *Service) SetBlog(ctx context.Context, instant time.Time, text string) error {
	if instant.IsZero() {
		instant = s.clock.Now()
	}
	if err := s.writer.SetBlog(instant, text); err != nil {
		return fmt.Errorf("set blog: %w", err)
	}
	s.recordAction(ctx, &storage.Action{
		Kind:   storage.ActionBlog,
		Day:    s.writer.Day(instant).T0(),
		Detail: fmt.Sprintf("%d bytes", len(text)),
		At:     s.clock.Now(),
	})
	_, err := s.RebuildAll(ctx, storage.TriggerBlog)
	return err
}

func (s *Service) recordRun(ctx context.Context, run *storage.Run) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordRun(ctx, run); err != nil {
		s.logger.Warn(ctx, "record run history", slog.Error(err))
	}
}

func (s *Service) recordAction(ctx context.Context, action *storage.Action) {
	if s.history == nil {
		return
	}
	if err := s.history.RecordAction(ctx, action); err != nil {
		s.logger.Warn(ctx, "record audit action", slog.Error(err))
	}
}
