package calendar

import (
	"log/slog"
	"sort"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

// WeekPositions computes the positioned segments for one displayed week: the
// day column each occurrence enters the week on, how many day cells it spans,
// and the display row that keeps overlapping segments apart.
//
// An occurrence is considered whenever it overlaps the week, not only when it
// starts inside it, so a multi-day event produces a clamped continuation
// segment in every week it touches.
func WeekPositions(clk clock.Clock, week core.QueryWindow, occs []core.Occurrence) []core.EventPosition {
	positions := make([]core.EventPosition, 0, len(occs))
	for _, occ := range occs {
		if !week.Overlaps(occ.StartAt, occ.EndAt) {
			continue
		}
		dayIndex, span := weekSegment(clk, week, occ)
		positions = append(positions, core.EventPosition{
			Occurrence: occ,
			DayIndex:   dayIndex,
			Span:       span,
		})
	}
	return Pack(positions)
}

// weekSegment clamps one occurrence to a week: the entry column, and the span
// found by walking forward while the occurrence's end still covers the next
// day cell, capped at the Saturday boundary.
func weekSegment(clk clock.Clock, week core.QueryWindow, occ core.Occurrence) (dayIndex, span int) {
	weekStart := clk.StartOfDay(week.StartAt)

	if occ.StartAt.After(weekStart) || occ.StartAt.Equal(weekStart) {
		dayIndex = daysBetween(weekStart, clk.StartOfDay(occ.StartAt))
		if dayIndex > 6 {
			dayIndex = 6
		}
	}

	end := occEnd(clk, occ)
	span = 1
	for i := dayIndex + 1; i < 7; i++ {
		cellStart := weekStart.AddDate(0, 0, i)
		if cellStart.Before(end) {
			span++
		} else {
			break
		}
	}
	return dayIndex, span
}

// occEnd treats an all-day occurrence as covering its whole last calendar
// day; timed occurrences use their exact end instant.
func occEnd(clk clock.Clock, occ core.Occurrence) time.Time {
	if occ.Event.IsAllDay {
		return clk.StartOfDay(occ.EndAt).AddDate(0, 0, 1)
	}
	return occ.EndAt
}

// Pack assigns rows to positioned segments of a single week. Segments are
// sorted by (day ascending, span descending) so wider bars are placed first,
// then each is put on the lowest row whose occupants have no day-range
// overlap, opening a new row when none fits. The greedy order is fixed, which
// makes the result deterministic for a given input set.
//
// Segments with a non-positive span are invalid input and are dropped with a
// warning rather than placed.
func Pack(positions []core.EventPosition) []core.EventPosition {
	valid := make([]core.EventPosition, 0, len(positions))
	for _, pos := range positions {
		if pos.Span <= 0 {
			slog.Warn("calendar: dropping occurrence with non-positive span",
				"event_id", pos.Occurrence.Event.ID,
				"day_index", pos.DayIndex,
				"span", pos.Span)
			continue
		}
		valid = append(valid, pos)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if valid[i].DayIndex != valid[j].DayIndex {
			return valid[i].DayIndex < valid[j].DayIndex
		}
		return valid[i].Span > valid[j].Span
	})

	var rows [][]core.EventPosition
	placed := make([]core.EventPosition, 0, len(valid))

	for _, pos := range valid {
		row := -1
		for r := range rows {
			if !rowOverlaps(rows[r], pos) {
				row = r
				break
			}
		}
		if row == -1 {
			row = len(rows)
			rows = append(rows, nil)
		}
		pos.Row = row
		rows[row] = append(rows[row], pos)
		placed = append(placed, pos)
	}
	return placed
}

// RowCount returns the number of display rows a packed week needs. Zero
// segments mean zero rows and the grid renders at minimum height.
func RowCount(positions []core.EventPosition) int {
	max := -1
	for _, pos := range positions {
		if pos.Row > max {
			max = pos.Row
		}
	}
	return max + 1
}

func rowOverlaps(row []core.EventPosition, pos core.EventPosition) bool {
	for _, existing := range row {
		if pos.DayIndex < existing.DayIndex+existing.Span &&
			existing.DayIndex < pos.DayIndex+pos.Span {
			return true
		}
	}
	return false
}
