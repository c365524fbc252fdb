// Package sampler runs the background activity samplers: the foreground
// window title sampler and the keystroke frequency sampler. Both append to
// the raw log streams and stop when their context is cancelled.
package sampler

import (
	"time"

	"github.com/runnerr0/ulogme/internal/rawlog"
)

// Appender receives sampled records.
type Appender interface {
	Append(kind rawlog.Kind, instant time.Time, payload string) error
}

// State is the lifecycle state of a sampler.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateLocked
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateLocked:
		return "locked"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
