package storage

import "time"

// Trigger names what started an aggregation pass.
type Trigger string

const (
	TriggerRefresh  Trigger = "refresh"
	TriggerNote     Trigger = "note"
	TriggerBlog     Trigger = "blog"
	TriggerSchedule Trigger = "schedule"
	TriggerCLI      Trigger = "cli"
)

// Run records one aggregation pass.
type Run struct {
	ID        int64         `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Trigger   Trigger       `json:"trigger"`
	Days      int           `json:"days"`
	Rewritten int           `json:"rewritten"`
	Skipped   int           `json:"skipped"`
	BadLines  int           `json:"bad_lines"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"` // empty on success
}

// Audit action kinds.
const (
	ActionNote = "note"
	ActionBlog = "blog"
)

// Action records one mutation made through the control API.
type Action struct {
	ID     int64
	Kind   string // ActionNote or ActionBlog
	Day    int64  // t0 of the affected log day
	Detail string
	At     time.Time
}

// Stats holds aggregate statistics about the history database.
type Stats struct {
	TotalRuns    int64
	FailedRuns   int64
	TotalActions int64
	LastRun      *Run
}
