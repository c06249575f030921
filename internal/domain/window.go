package domain

import (
	"fmt"
	"time"
)

// Window is a half-open time interval [Start, End) used to scope queries
// and fetches. The half-open convention lets adjacent windows tile without
// gap or overlap.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from two instants, normalized to UTC.
func NewWindow(start, end time.Time) Window {
	return Window{Start: start.UTC(), End: end.UTC()}
}

// Lookback returns the window covering the last d duration ending at now.
func Lookback(now time.Time, d time.Duration) Window {
	return NewWindow(now.Add(-d), now)
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Validate checks that the window is non-empty.
func (w Window) Validate() error {
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end %s not after start %s", w.End, w.Start)
	}
	return nil
}

// String formats the window for logs and cache keys.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
