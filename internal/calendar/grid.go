package calendar

import (
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

type (
	// WeekLayout is one displayed week: its window, the seven local day
	// cells, and the packed event segments the renderer paints over them.
	WeekLayout struct {
		Window    core.QueryWindow
		Days      [7]time.Time
		Positions []core.EventPosition
		Rows      int
	}

	// Grid is the fully laid out month or week view.
	Grid struct {
		Window core.QueryWindow
		Weeks  []WeekLayout
	}
)

// BuildGrid splits a resolved query window into its displayed weeks and packs
// each week's occurrences into non-overlapping rows. Both month and week
// windows are Sunday-aligned whole weeks, so the split is a plain 7-day walk.
func BuildGrid(clk clock.Clock, window core.QueryWindow, occs []core.Occurrence) Grid {
	grid := Grid{Window: window}

	for weekStart := clk.StartOfDay(window.StartAt); weekStart.Before(window.EndAt); weekStart = weekStart.AddDate(0, 0, 7) {
		week := core.QueryWindow{
			StartAt: weekStart,
			EndAt:   endOfDay(weekStart.AddDate(0, 0, 6)),
		}

		layout := WeekLayout{Window: week}
		for i := 0; i < 7; i++ {
			layout.Days[i] = weekStart.AddDate(0, 0, i)
		}
		layout.Positions = WeekPositions(clk, week, occs)
		layout.Rows = RowCount(layout.Positions)

		grid.Weeks = append(grid.Weeks, layout)
	}
	return grid
}
