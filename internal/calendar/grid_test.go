package calendar

import (
	"testing"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

func TestBuildGridMonth(t *testing.T) {
	clk := clock.New(time.UTC)
	window := MonthRange(clk, "2026-09")

	ev := core.CalendarEvent{
		ID:      "ev1",
		Title:   "Dentist",
		StartAt: at(2026, time.September, 1, 9, 0),
		EndAt:   at(2026, time.September, 1, 10, 0),
	}
	grid := BuildGrid(clk, window, Expand(clk, ev, window))

	if len(grid.Weeks) != 5 {
		t.Fatalf("got %d weeks, want 5", len(grid.Weeks))
	}

	first := grid.Weeks[0]
	if !first.Days[0].Equal(day(2026, time.August, 30)) {
		t.Errorf("week 0 day 0 = %v, want 2026-08-30", first.Days[0])
	}
	if !first.Days[6].Equal(day(2026, time.September, 5)) {
		t.Errorf("week 0 day 6 = %v, want 2026-09-05", first.Days[6])
	}

	if len(first.Positions) != 1 {
		t.Fatalf("week 0: got %d positions, want 1", len(first.Positions))
	}
	pos := first.Positions[0]
	if pos.DayIndex != 2 || pos.Span != 1 || pos.Row != 0 {
		t.Errorf("position = (day %d, span %d, row %d), want (2, 1, 0)", pos.DayIndex, pos.Span, pos.Row)
	}
	if first.Rows != 1 {
		t.Errorf("week 0 Rows = %d, want 1", first.Rows)
	}

	for i, week := range grid.Weeks[1:] {
		if len(week.Positions) != 0 || week.Rows != 0 {
			t.Errorf("week %d: got %d positions and %d rows, want 0 and 0", i+1, len(week.Positions), week.Rows)
		}
	}
}

func TestBuildGridMultiWeekContinuation(t *testing.T) {
	clk := clock.New(time.UTC)
	window := MonthRange(clk, "2026-09")

	trip := core.CalendarEvent{
		ID:       "trip",
		Title:    "Trip",
		IsAllDay: true,
		StartAt:  day(2026, time.September, 2),
		EndAt:    day(2026, time.September, 8),
	}
	grid := BuildGrid(clk, window, Expand(clk, trip, window))

	if len(grid.Weeks[0].Positions) != 1 || len(grid.Weeks[1].Positions) != 1 {
		t.Fatalf("trip segments in weeks 0 and 1: got %d and %d, want 1 and 1",
			len(grid.Weeks[0].Positions), len(grid.Weeks[1].Positions))
	}
	if seg := grid.Weeks[0].Positions[0]; seg.DayIndex != 3 || seg.Span != 4 {
		t.Errorf("week 0 segment = (day %d, span %d), want (3, 4)", seg.DayIndex, seg.Span)
	}
	if seg := grid.Weeks[1].Positions[0]; seg.DayIndex != 0 || seg.Span != 3 {
		t.Errorf("week 1 segment = (day %d, span %d), want (0, 3)", seg.DayIndex, seg.Span)
	}
	for i, week := range grid.Weeks[2:] {
		if len(week.Positions) != 0 {
			t.Errorf("week %d: got %d positions, want 0", i+2, len(week.Positions))
		}
	}
}

func TestBuildGridRecurringEvent(t *testing.T) {
	clk := clock.New(time.UTC)
	window := MonthRange(clk, "2026-09")

	standup := core.CalendarEvent{
		ID:             "standup",
		Title:          "Standup",
		StartAt:        at(2026, time.September, 1, 9, 0),
		EndAt:          at(2026, time.September, 1, 9, 30),
		RecurrenceRule: "FREQ=WEEKLY",
	}
	grid := BuildGrid(clk, window, Expand(clk, standup, window))

	// One Tuesday per displayed week.
	total := 0
	for i, week := range grid.Weeks {
		if len(week.Positions) != 1 {
			t.Errorf("week %d: got %d positions, want 1", i, len(week.Positions))
			continue
		}
		if week.Positions[0].DayIndex != 2 {
			t.Errorf("week %d DayIndex = %d, want 2", i, week.Positions[0].DayIndex)
		}
		total += len(week.Positions)
	}
	if total != 5 {
		t.Errorf("total positions = %d, want 5", total)
	}
}
