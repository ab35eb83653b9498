package services

import (
	"context"
	"testing"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
	"hearth/internal/events/memory"
)

func TestMonthGridFromMemoryStore(t *testing.T) {
	clk := clock.New(time.UTC)

	standup := testEvent("standup", "Standup")
	standup.RecurrenceRule = "FREQ=WEEKLY"
	outside := testEvent("later", "October thing")
	outside.StartAt = time.Date(2026, time.October, 20, 9, 0, 0, 0, time.UTC)
	outside.EndAt = outside.StartAt.Add(time.Hour)

	store := memory.NewSeeded(standup, outside)
	coord := NewCoordinator(clk, store)
	views := NewViewService(clk, coord, store)

	grid, err := views.MonthGrid(context.Background(), "2026-09", ViewOptions{})
	if err != nil {
		t.Fatalf("MonthGrid() error = %v", err)
	}

	if len(grid.Weeks) != 5 {
		t.Fatalf("got %d weeks, want 5", len(grid.Weeks))
	}

	total := 0
	for _, week := range grid.Weeks {
		total += len(week.Positions)
	}
	// The weekly standup lands once per displayed week; the October one-off
	// is outside the window entirely.
	if total != 5 {
		t.Errorf("total positions = %d, want 5", total)
	}
}

func TestWeekGridFromMemoryStore(t *testing.T) {
	clk := clock.New(time.UTC)

	ev := testEvent("a", "Meeting")
	store := memory.NewSeeded(ev)
	coord := NewCoordinator(clk, store)
	views := NewViewService(clk, coord, store)

	anchor := time.Date(2026, time.September, 2, 12, 0, 0, 0, time.UTC)
	grid, err := views.WeekGrid(context.Background(), anchor, ViewOptions{})
	if err != nil {
		t.Fatalf("WeekGrid() error = %v", err)
	}

	if len(grid.Weeks) != 1 {
		t.Fatalf("got %d weeks, want 1", len(grid.Weeks))
	}
	if len(grid.Weeks[0].Positions) != 1 {
		t.Errorf("got %d positions, want 1", len(grid.Weeks[0].Positions))
	}
}

func TestExpandAllSharedFilter(t *testing.T) {
	clk := clock.New(time.UTC)

	shared := testEvent("shared", "Family dinner")
	shared.IsShared = true
	personal := testEvent("personal", "Gym")

	window := septemberWindow()
	raw := []core.CalendarEvent{shared, personal}

	all := ExpandAll(clk, raw, window, ViewOptions{})
	if len(all) != 2 {
		t.Errorf("unfiltered occurrences = %d, want 2", len(all))
	}

	sharedOnly := ExpandAll(clk, raw, window, ViewOptions{SharedOnly: true})
	if len(sharedOnly) != 1 || sharedOnly[0].Event.ID != "shared" {
		t.Errorf("shared-only occurrences = %v, want [shared]", sharedOnly)
	}
}

func TestExpandAllSkipsBadRules(t *testing.T) {
	clk := clock.New(time.UTC)

	good := testEvent("good", "Good")
	bad := testEvent("bad", "Bad")
	bad.RecurrenceRule = "FREQ=BOGUS"

	occs := ExpandAll(clk, []core.CalendarEvent{bad, good}, septemberWindow(), ViewOptions{})
	if len(occs) != 1 || occs[0].Event.ID != "good" {
		t.Errorf("occurrences = %v, want only the good event", occs)
	}
}

func TestEventColorResolution(t *testing.T) {
	clk := clock.New(time.UTC)
	store := memory.New()
	coord := NewCoordinator(clk, store)
	views := NewViewService(clk, coord, store)
	ctx := context.Background()

	if _, err := store.UpdateColorPreferences(ctx, core.ColorPreferences{
		UserID:        "ada",
		PersonalColor: "#111111",
		SharedColor:   "#222222",
	}); err != nil {
		t.Fatalf("UpdateColorPreferences() error = %v", err)
	}

	personal := testEvent("p", "Personal")
	shared := testEvent("s", "Shared")
	shared.IsShared = true
	overridden := testEvent("o", "Overridden")
	overridden.ColorOverride = "#abcdef"

	tests := []struct {
		name string
		ev   core.CalendarEvent
		user string
		want string
	}{
		{"override beats preferences", overridden, "ada", "#abcdef"},
		{"personal preference", personal, "ada", "#111111"},
		{"shared preference", shared, "ada", "#222222"},
		{"no user falls back to defaults", personal, "", core.DefaultPersonalColor},
		{"unknown user falls back to defaults", shared, "ghost", core.DefaultSharedColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := views.EventColor(ctx, tt.ev, tt.user); got != tt.want {
				t.Errorf("EventColor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventColorCacheInvalidation(t *testing.T) {
	clk := clock.New(time.UTC)
	store := memory.New()
	coord := NewCoordinator(clk, store)
	views := NewViewService(clk, coord, store)
	ctx := context.Background()

	if _, err := store.UpdateColorPreferences(ctx, core.ColorPreferences{
		UserID:        "ada",
		PersonalColor: "#111111",
	}); err != nil {
		t.Fatalf("UpdateColorPreferences() error = %v", err)
	}

	ev := testEvent("p", "Personal")
	if got := views.EventColor(ctx, ev, "ada"); got != "#111111" {
		t.Fatalf("EventColor() = %q, want #111111", got)
	}

	// The record changed behind the cache; the stale color is served until
	// the entry is dropped.
	if _, err := store.UpdateColorPreferences(ctx, core.ColorPreferences{
		UserID:        "ada",
		PersonalColor: "#333333",
	}); err != nil {
		t.Fatalf("UpdateColorPreferences() error = %v", err)
	}
	if got := views.EventColor(ctx, ev, "ada"); got != "#111111" {
		t.Errorf("EventColor() before invalidation = %q, want cached #111111", got)
	}

	views.InvalidatePreferences("ada")
	if got := views.EventColor(ctx, ev, "ada"); got != "#333333" {
		t.Errorf("EventColor() after invalidation = %q, want #333333", got)
	}
}
