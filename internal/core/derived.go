package core

import "time"

type (
	// QueryWindow is the inclusive date/time range a calendar view needs
	// populated: a full month grid or a single week.
	QueryWindow struct {
		StartAt time.Time
		EndAt   time.Time
	}

	// Occurrence is one concrete instance produced by expanding a (possibly
	// recurring) event against a query window. It exists only inside one
	// expansion pass and carries no identity of its own.
	Occurrence struct {
		Event   CalendarEvent
		StartAt time.Time
		EndAt   time.Time
	}

	// EventPosition places one occurrence segment in a displayed week:
	// DayIndex 0..6 (Sunday-based), Span consecutive day columns, Row the
	// display row. Positions sharing overlapping day ranges in the same week
	// always carry distinct rows.
	EventPosition struct {
		Occurrence
		DayIndex int
		Span     int
		Row      int
	}
)

// Contains reports whether t falls inside the window (inclusive ends).
func (w QueryWindow) Contains(t time.Time) bool {
	return !t.Before(w.StartAt) && !t.After(w.EndAt)
}

// Overlaps reports whether [start, end] intersects the window.
func (w QueryWindow) Overlaps(start, end time.Time) bool {
	return !start.After(w.EndAt) && !end.Before(w.StartAt)
}

// Days returns the number of whole days the window covers, counting both ends.
func (w QueryWindow) Days() int {
	return int(w.EndAt.Sub(w.StartAt).Hours()/24) + 1
}
