package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/ulogme/internal/control"
	"github.com/runnerr0/ulogme/internal/logday"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version          string `json:"version"`
	HistoryPath      string `json:"history_path"`
	HistorySizeBytes int64  `json:"history_size_bytes"`
	RetentionDays    int    `json:"retention_days"`
	*control.Status
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	e, done, err := resolveEnv(c.env, c.globals)
	if err != nil {
		return err
	}
	defer done()

	st, err := e.svc.Status(context.Background(), c.Runs)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	size := fileSize(e.dbPath)
	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(e, st, size)
	}
	return c.printStatusHuman(e, st, size)
}

func (c *StatusCommand) printStatusHuman(e *env, st *control.Status, size int64) error {
	fmt.Println("ulogme Status")
	fmt.Println("=============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Logs:          %s\n", st.LogDir)
	fmt.Printf("Render:        %s\n", st.RenderDir)
	fmt.Printf("Days:          %s\n", humanize.Comma(int64(len(st.Days))))
	if n := len(st.Days); n > 0 {
		fmt.Printf("First day:     %s\n", dayLabel(st.Days[0].T0))
		fmt.Printf("Last day:      %s\n", dayLabel(st.Days[n-1].T0))
	}

	if e.store == nil {
		fmt.Println("History:       unavailable")
		return nil
	}
	fmt.Printf("History:       %s (%s)\n", e.dbPath, humanize.Bytes(uint64(size)))
	fmt.Printf("Rebuilds:      %s (%s failed)\n", humanize.Comma(st.TotalRuns), humanize.Comma(st.FailedRuns))
	fmt.Printf("Edits:         %s\n", humanize.Comma(st.Actions))
	fmt.Printf("Retention:     %d days\n", e.cfg.History.RetentionDays)

	if len(st.RecentRuns) > 0 {
		fmt.Println()
		fmt.Println("Recent rebuilds:")
		for _, r := range st.RecentRuns {
			result := fmt.Sprintf("%d/%d rewritten", r.Rewritten, r.Days)
			if r.Error != "" {
				result = "FAILED: " + r.Error
			}
			fmt.Printf("  %-14s %-9s %s\n", humanize.Time(r.StartedAt), r.Trigger, result)
		}
	}
	return nil
}

func (c *StatusCommand) printStatusJSON(e *env, st *control.Status, size int64) error {
	out := statusJSON{
		Version:          c.version,
		HistoryPath:      e.dbPath,
		HistorySizeBytes: size,
		RetentionDays:    e.cfg.History.RetentionDays,
		Status:           st,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func dayLabel(t0 int64) string {
	return logday.Day(t0).Time().Format("Mon 2006-01-02")
}

// fileSize returns the size of path in bytes, or 0 if it cannot be stat'd.
func fileSize(path string) int64 {
	if info, err := os.Stat(path); err == nil {
		return info.Size()
	}
	return 0
}

