package calendar

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

// MonthRange resolves a YYYY-MM token into the query window covering the full
// calendar grid for that month: from the most recent Sunday on or before the
// 1st through the Saturday on or after the month's last day, so a 7xN grid
// has no partial leading or trailing week. An invalid token falls back to the
// current month.
func MonthRange(clk clock.Clock, yearMonth string) core.QueryWindow {
	year, month, ok := parseYearMonth(yearMonth)
	if !ok {
		now := time.Now().In(clk.Location())
		slog.Warn("calendar: invalid month token, using current month", "token", yearMonth)
		year, month = now.Year(), int(now.Month())
	}

	loc := clk.Location()
	firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	// Day zero of the next month is the last day of this one. Leap years come
	// out of the calendar arithmetic, not a day-count table.
	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, loc)

	gridStart := firstDay.AddDate(0, 0, -int(firstDay.Weekday()))
	gridEnd := lastDay.AddDate(0, 0, int(time.Saturday-lastDay.Weekday()))

	return core.QueryWindow{
		StartAt: gridStart,
		EndAt:   endOfDay(gridEnd),
	}
}

// WeekRange returns the 7-day window beginning on the Sunday of the anchor
// date's week, in the clock's timezone.
func WeekRange(clk clock.Clock, anchor time.Time) core.QueryWindow {
	day := clk.StartOfDay(anchor)
	sunday := day.AddDate(0, 0, -int(day.Weekday()))
	return core.QueryWindow{
		StartAt: sunday,
		EndAt:   endOfDay(sunday.AddDate(0, 0, 6)),
	}
}

func parseYearMonth(token string) (year, month int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(token), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil || y < 1 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, m, true
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
