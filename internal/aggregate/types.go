package aggregate

import (
	"fmt"

	"github.com/runnerr0/ulogme/internal/logday"
)

// ManifestFile is the name of the manifest written to the output directory.
const ManifestFile = "export_list.json"

// TextEvent is a record whose payload is a string (window titles, notes).
type TextEvent struct {
	T int64  `json:"t"`
	S string `json:"s"`
}

// CountEvent is a keystroke frequency record.
type CountEvent struct {
	T int64 `json:"t"`
	S int64 `json:"s"`
}

// DayExport is the front-end artifact for one log day.
type DayExport struct {
	WindowEvents  []TextEvent  `json:"window_events"`
	KeyfreqEvents []CountEvent `json:"keyfreq_events"`
	NotesEvents   []TextEvent  `json:"notes_events"`
	Blog          string       `json:"blog"`
}

// ManifestEntry lists one exported log day.
type ManifestEntry struct {
	T0    int64  `json:"t0"`
	T1    int64  `json:"t1"`
	FName string `json:"fname"`
}

// ExportName returns the export file name for a day.
func ExportName(day logday.Day) string {
	return fmt.Sprintf("events_%d.json", day.T0())
}

// Result summarizes one aggregation pass.
type Result struct {
	Days      []logday.Day
	Rewritten []logday.Day
	Skipped   []logday.Day
	// BadLines counts malformed lines dropped per rewritten day.
	BadLines map[logday.Day]int
}

// TotalBadLines sums BadLines over all days.
func (r *Result) TotalBadLines() int {
	n := 0
	for _, c := range r.BadLines {
		n += c
	}
	return n
}
