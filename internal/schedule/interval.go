// Package schedule holds the time-interval rules shared by the booking and
// downtime ledgers: half-open overlap detection, window validation and the
// derived live state of a room.
package schedule

import "time"

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow validates and returns a window. Both ends are normalised to UTC.
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, &ValidationError{
			Constraint: ConstraintInterval,
			Detail:     "end must be after start",
		}
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// Overlaps reports whether w and o intersect.
func (w Window) Overlaps(o Window) bool {
	return Overlaps(w.Start, w.End, o.Start, o.End)
}

// Covers reports whether t lies in [Start, End).
func (w Window) Covers(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Shift returns the window moved by d, keeping its length.
func (w Window) Shift(d time.Duration) Window {
	return Window{Start: w.Start.Add(d), End: w.End.Add(d)}
}
