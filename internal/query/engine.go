// Package query is the complaint collection query engine.
//
// Every operation works on a snapshot slice and returns fresh slices; inputs
// are never modified. The Engine only carries a clock, used by the
// date-range filter, and the location used to bucket complaints by month.
package query

import "time"

const dayMillis = int64(24 * time.Hour / time.Millisecond)

// Engine evaluates filters and aggregates over complaint snapshots.
// The zero value is not usable; call New.
type Engine struct {
	now func() time.Time
	loc *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the time zone for month bucketing. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// daysSince truncates (now - t) to whole days, flooring negative spans.
func daysSince(now, t time.Time) int64 {
	ms := now.Sub(t).Milliseconds()
	days := ms / dayMillis
	if ms%dayMillis != 0 && ms < 0 {
		days--
	}
	return days
}
