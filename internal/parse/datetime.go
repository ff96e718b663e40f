package parse

import (
	"fmt"
	"strings"
	"time"
)

var localLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04"}

// ParseLocal reads a wall-clock time such as "2026-03-02 09:30" in loc and
// returns the instant in UTC. A "T" between date and time is accepted.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	v := strings.Replace(strings.TrimSpace(s), "T", " ", 1)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q, want YYYY-MM-DD HH:MM[:SS]", s)
}

// FormatLocal renders t as a wall-clock time in loc, the inverse of ParseLocal.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(localLayouts[0])
}
