package services

import (
	"context"
	"fmt"
	"time"

	"hearth/internal/cache"
	"hearth/internal/calendar"
	"hearth/internal/clock"
	"hearth/internal/core"
	"hearth/internal/events"
)

// ViewOptions filter a calendar view before expansion.
type ViewOptions struct {
	// SharedOnly restricts the view to shared/family events, mirroring the
	// shared-calendar dashboard preview.
	SharedOnly bool
}

// ViewService turns the coordinator's raw event cache into rendered view
// data: expanded occurrences and packed week grids. Occurrences and positions
// are derived fresh on every call and never cached across window changes.
type ViewService struct {
	clk   clock.Clock
	coord *Coordinator

	prefs      events.PreferencesReader
	prefsCache *cache.LRUCache[core.ColorPreferences]
}

func NewViewService(clk clock.Clock, coord *Coordinator, prefs events.PreferencesReader) *ViewService {
	return &ViewService{
		clk:        clk,
		coord:      coord,
		prefs:      prefs,
		prefsCache: cache.NewLRUCache[core.ColorPreferences](100, 5*time.Minute),
	}
}

// MonthGrid resolves a YYYY-MM token, loads the grid window, and returns the
// packed layout for every displayed week.
func (s *ViewService) MonthGrid(ctx context.Context, yearMonth string, opts ViewOptions) (calendar.Grid, error) {
	window := calendar.MonthRange(s.clk, yearMonth)
	return s.grid(ctx, window, opts)
}

// WeekGrid loads the Sunday-anchored week containing anchor.
func (s *ViewService) WeekGrid(ctx context.Context, anchor time.Time, opts ViewOptions) (calendar.Grid, error) {
	window := calendar.WeekRange(s.clk, anchor)
	return s.grid(ctx, window, opts)
}

// Occurrences loads a window and returns its expanded occurrences without
// layout, for list-style views and the reminder scanner.
func (s *ViewService) Occurrences(ctx context.Context, window core.QueryWindow, opts ViewOptions) ([]core.Occurrence, error) {
	raw, err := s.coord.LoadWindow(ctx, window)
	if err != nil {
		return nil, err
	}
	return ExpandAll(s.clk, raw, window, opts), nil
}

func (s *ViewService) grid(ctx context.Context, window core.QueryWindow, opts ViewOptions) (calendar.Grid, error) {
	occs, err := s.Occurrences(ctx, window, opts)
	if err != nil {
		return calendar.Grid{}, fmt.Errorf("build grid: %w", err)
	}
	return calendar.BuildGrid(s.clk, window, occs), nil
}

// EventColor resolves an event's display color through the per-user
// preference record, caching lookups briefly so painting a month grid doesn't
// hammer the preferences store.
func (s *ViewService) EventColor(ctx context.Context, ev core.CalendarEvent, userID string) string {
	if ev.ColorOverride != "" || userID == "" || s.prefs == nil {
		return ev.Color(nil)
	}

	if prefs, ok := s.prefsCache.Get(userID); ok {
		return ev.Color(&prefs)
	}

	prefs, err := s.prefs.ColorPreferences(ctx, userID)
	if err != nil {
		// Color is cosmetic; fall back to defaults rather than failing a view.
		return ev.Color(nil)
	}
	s.prefsCache.Set(userID, prefs)
	return ev.Color(&prefs)
}

// InvalidatePreferences drops a user's cached color record after an update.
func (s *ViewService) InvalidatePreferences(userID string) {
	s.prefsCache.Delete(userID)
}

// ExpandAll expands every candidate event against the window, applying the
// shared-only filter before expansion. Events whose expansion is empty simply
// contribute nothing; the per-event design means one bad rule can never take
// down the whole render.
func ExpandAll(clk clock.Clock, raw []core.CalendarEvent, window core.QueryWindow, opts ViewOptions) []core.Occurrence {
	var out []core.Occurrence
	for _, ev := range raw {
		if opts.SharedOnly && !ev.IsShared {
			continue
		}
		out = append(out, calendar.Expand(clk, ev, window)...)
	}
	return out
}
