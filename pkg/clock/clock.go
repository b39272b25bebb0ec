// Package clock supplies the engine's notion of time. Every windowed rule
// (voting periods, execution delays, withdrawal days, cooldowns) compares
// stored timestamps against a millisecond value obtained from a Clock, never
// against the wall clock directly.
package clock

import "time"

// Millis is a point in time expressed as milliseconds. The source is required
// to be monotonically non-decreasing across calls.
type Millis = int64

const (
	// MillisPerDay is the length of a calendar day. Withdrawal-day buckets and
	// epoch numbers are derived by integer division with this constant.
	MillisPerDay Millis = 86_400_000
)

// Clock yields the current timestamp.
type Clock interface {
	Now() Millis
}

// System reads the operating system clock. Used by the daemon; tests inject a
// Manual clock instead.
type System struct{}

func (System) Now() Millis { return time.Now().UnixMilli() }

// Manual is a hand-driven clock for tests and simulations.
type Manual struct {
	ts Millis
}

// NewManual returns a Manual clock starting at ts.
func NewManual(ts Millis) *Manual { return &Manual{ts: ts} }

func (m *Manual) Now() Millis { return m.ts }

// Advance moves the clock forward by d milliseconds.
func (m *Manual) Advance(d Millis) { m.ts += d }

// Set jumps the clock to ts. Moving backwards is refused to preserve
// monotonicity.
func (m *Manual) Set(ts Millis) {
	if ts > m.ts {
		m.ts = ts
	}
}

// Day returns the calendar-day ordinal for ts.
func Day(ts Millis) int64 { return ts / MillisPerDay }

// Epoch returns the accrual epoch ordinal for ts. One epoch is one day.
func Epoch(ts Millis) int64 { return ts / MillisPerDay }
