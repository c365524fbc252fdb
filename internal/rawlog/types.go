package rawlog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/runnerr0/ulogme/internal/logday"
)

// Kind names one stream of logged activity.
type Kind string

const (
	Window  Kind = "window"
	Keyfreq Kind = "keyfreq"
	Notes   Kind = "notes"
	Blog    Kind = "blog"
)

// AppendKinds are the line-oriented streams. Only these introduce log days.
var AppendKinds = []Kind{Window, Keyfreq, Notes}

// AllKinds lists every stream contributing to a day export.
var AllKinds = []Kind{Window, Keyfreq, Notes, Blog}

// LockedScreenTitle is logged to the window stream while the screen is locked.
const LockedScreenTitle = "__LOCKEDSCREEN"

// Record is one timestamped line of an append stream.
type Record struct {
	Timestamp int64
	Payload   string
}

// FileName returns the stream file name for a kind and day.
func FileName(kind Kind, day logday.Day) string {
	return fmt.Sprintf("%s_%d.txt", kind, day.T0())
}

// ParseFileName extracts the kind and day from a stream file name. It
// reports false for anything not shaped like {kind}_{t0}.txt.
func ParseFileName(name string) (Kind, logday.Day, bool) {
	base, ok := strings.CutSuffix(name, ".txt")
	if !ok {
		return "", 0, false
	}
	kind, stamp, ok := strings.Cut(base, "_")
	if !ok {
		return "", 0, false
	}
	t0, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return "", 0, false
	}
	switch k := Kind(kind); k {
	case Window, Keyfreq, Notes, Blog:
		return k, logday.Day(t0), true
	}
	return "", 0, false
}
