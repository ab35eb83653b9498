// Package clock converts between wall-clock times and fixed-format local date
// strings. Formatting always goes through local calendar fields, never an
// implicit UTC round-trip, so the calendar day never shifts near midnight for
// hosts east or west of UTC.
package clock

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05-07:00"
	MonthLayout    = "2006-01"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Clock formats and parses dates in a fixed location. The zero value is not
// usable; construct with New or Local.
type Clock struct {
	loc *time.Location
}

// Local returns a clock bound to the host's local timezone.
func Local() Clock {
	return Clock{loc: time.Local}
}

// New returns a clock bound to loc. A nil loc falls back to time.Local.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{loc: loc}
}

// Location returns the clock's timezone.
func (c Clock) Location() *time.Location {
	return c.loc
}

// DateString renders t as YYYY-MM-DD using local calendar fields. A zero time
// is garbage input: the current local date is substituted and a warning logged
// so an invalid string never reaches storage.
func (c Clock) DateString(t time.Time) string {
	if t.IsZero() {
		slog.Warn("clock: zero time passed to DateString, substituting now")
		t = time.Now()
	}
	return t.In(c.loc).Format(DateLayout)
}

// DateTimeString renders t as a local timestamp with an explicit offset
// suffix. The offset is never a bare Z unless the clock's zone is UTC.
func (c Clock) DateTimeString(t time.Time) string {
	if t.IsZero() {
		slog.Warn("clock: zero time passed to DateTimeString, substituting now")
		t = time.Now()
	}
	return t.In(c.loc).Format(DateTimeLayout)
}

// MonthString renders t as a YYYY-MM token.
func (c Clock) MonthString(t time.Time) string {
	if t.IsZero() {
		slog.Warn("clock: zero time passed to MonthString, substituting now")
		t = time.Now()
	}
	return t.In(c.loc).Format(MonthLayout)
}

// ValidDateString reports whether s is a syntactically and semantically valid
// YYYY-MM-DD date. Shape is checked first, then the calendar fields must
// round-trip (so 2024-02-30 fails even though it matches the pattern).
// It never returns an error and never panics on garbage.
func (c Clock) ValidDateString(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	t, err := time.ParseInLocation(DateLayout, s, c.loc)
	if err != nil {
		return false
	}
	return t.Format(DateLayout) == s
}

// ParseDate parses a validated YYYY-MM-DD string into a midnight timestamp in
// the clock's location.
func (c Clock) ParseDate(s string) (time.Time, error) {
	if !c.ValidDateString(s) {
		return time.Time{}, fmt.Errorf("invalid date string %q", s)
	}
	return time.ParseInLocation(DateLayout, s, c.loc)
}

// SameDay reports whether a and b fall on the same local calendar day.
func (c Clock) SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(c.loc).Date()
	by, bm, bd := b.In(c.loc).Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to local midnight.
func (c Clock) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}
