package control

import (
	"context"

	"cdr.dev/slog/v3"

	"github.com/runnerr0/ulogme/internal/aggregate"
	"github.com/runnerr0/ulogme/internal/storage"
)

// Status summarizes the exported days and the rebuild history.
type Status struct {
	LogDir     string                    `json:"log_dir"`
	RenderDir  string                    `json:"render_dir"`
	Days       []aggregate.ManifestEntry `json:"days"`
	TotalRuns  int64                     `json:"total_runs"`
	FailedRuns int64                     `json:"failed_runs"`
	Actions    int64                     `json:"actions"`
	RecentRuns []storage.Run             `json:"recent_runs"`
}

// Status reads the current manifest and history. A missing manifest or
// history store yields an empty section rather than an error.
func (s *Service) Status(ctx context.Context, recent int) (*Status, error) {
	st := &Status{
		LogDir:     s.writer.Dir(),
		RenderDir:  s.engine.OutDir(),
		Days:       []aggregate.ManifestEntry{},
		RecentRuns: []storage.Run{},
	}

	days, err := s.engine.Manifest()
	if err != nil {
		s.logger.Debug(ctx, "read manifest", slog.Error(err))
	} else {
		st.Days = days
	}

	if s.history == nil {
		return st, nil
	}
	stats, err := s.history.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	st.TotalRuns = stats.TotalRuns
	st.FailedRuns = stats.FailedRuns
	st.Actions = stats.TotalActions

	runs, err := s.history.RecentRuns(ctx, recent)
	if err != nil {
		return nil, err
	}
	st.RecentRuns = runs
	return st, nil
}
