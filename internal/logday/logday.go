// Package logday maps wall-clock instants to the log day that owns them. A
// log day starts at a fixed local boundary hour and covers the half-open
// window [t0, t0+24h).
package logday

import "time"

// DefaultBoundaryHour is the local hour at which a new log day starts.
const DefaultBoundaryHour = 7

// Length is the span of a log day in seconds, as used for t1.
const Length = 24 * 60 * 60

// Day identifies a log day by the Unix timestamp of its boundary.
type Day int64

// T0 returns the Unix timestamp of the day's start.
func (d Day) T0() int64 { return int64(d) }

// T1 returns the Unix timestamp one day length after T0.
func (d Day) T1() int64 { return int64(d) + Length }

// Time returns the boundary instant in local time.
func (d Day) Time() time.Time { return time.Unix(int64(d), 0) }

// Contains reports whether the Unix timestamp ts falls in [T0, T1).
func (d Day) Contains(ts int64) bool { return ts >= d.T0() && ts < d.T1() }

// Normalizer computes log days for a given boundary hour.
type Normalizer struct {
	BoundaryHour int
}

// Normalize returns the boundary instant of the log day owning t. Instants
// before the boundary hour belong to the previous calendar day.
func (n Normalizer) Normalize(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), n.BoundaryHour, 0, 0, 0, t.Location())
	if t.Hour() < n.BoundaryHour {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Of returns the log day owning t.
func (n Normalizer) Of(t time.Time) Day {
	return Day(n.Normalize(t).Unix())
}

var std = Normalizer{BoundaryHour: DefaultBoundaryHour}

// Normalize uses the default 07:00 boundary.
func Normalize(t time.Time) time.Time { return std.Normalize(t) }

// Of uses the default 07:00 boundary.
func Of(t time.Time) Day { return std.Of(t) }
