package calendar

import (
	"log/slog"
	"math"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

// Safety cap so a pathological window can never produce an unbounded
// expansion. Far larger than any month grid needs.
const maxOccurrencesPerEvent = 1000

// Expand produces the ordered occurrences of one event intersecting the query
// window. A missing rule yields the singleton {StartAt} when it falls inside
// the window. A rule the parser rejects yields an empty set rather than an
// error: invalid rules are stopped by ValidateRule before persistence, so
// hitting one here means stale data, which is logged and skipped instead of
// failing the whole render.
func Expand(clk clock.Clock, ev core.CalendarEvent, window core.QueryWindow) []core.Occurrence {
	starts := ExpandTimes(clk, ev.StartAt, ev.RecurrenceRule, window)
	if len(starts) == 0 {
		return nil
	}

	duration := ev.Duration()
	occs := make([]core.Occurrence, 0, len(starts))
	for _, start := range starts {
		occs = append(occs, core.Occurrence{
			Event:   ev,
			StartAt: start,
			EndAt:   start.Add(duration),
		})
	}
	return occs
}

// ExpandTimes returns the ordered occurrence start times for a base start and
// rule string inside the window. Every returned time is >= startAt, spaced by
// FREQ/INTERVAL, strictly before UNTIL when present.
//
// Expansion cost is proportional to occurrences inside the window, not to the
// time elapsed since the rule's origin: the number of cadence steps needed to
// reach the window start is computed directly, then iteration runs forward
// only within the window.
func ExpandTimes(clk clock.Clock, startAt time.Time, ruleStr string, window core.QueryWindow) []time.Time {
	if ruleStr == "" {
		if window.Contains(startAt) {
			return []time.Time{startAt}
		}
		return nil
	}

	rule, err := ParseRule(clk, ruleStr)
	if err != nil {
		slog.Warn("calendar: skipping event with unparseable recurrence rule",
			"rule", ruleStr, "error", err)
		return nil
	}

	start := startAt.In(clk.Location())
	var out []time.Time

	// Start one step before the computed skip: occurrences keep the base
	// start's time of day, so the step that reaches the window start date can
	// land just before the window start instant.
	for n := firstStep(clk, rule, start, window.StartAt) - 1; ; n++ {
		if n < 0 {
			continue
		}
		occ := occurrenceAtStep(clk, rule, start, n)
		if occ.After(window.EndAt) {
			break
		}
		if !rule.Until.IsZero() && !occ.Before(rule.Until) {
			break
		}
		if occ.Before(window.StartAt) {
			continue
		}
		out = append(out, occ)
		if len(out) >= maxOccurrencesPerEvent {
			slog.Warn("calendar: occurrence cap reached during expansion",
				"rule", ruleStr, "cap", maxOccurrencesPerEvent)
			break
		}
	}
	return out
}

// firstStep computes how many cadence steps are needed to move the base start
// at or past the window start, without walking occurrence by occurrence.
func firstStep(clk clock.Clock, rule Rule, base, windowStart time.Time) int {
	baseDay := clk.StartOfDay(base)
	windowDay := clk.StartOfDay(windowStart)
	if !windowDay.After(baseDay) {
		return 0
	}

	switch rule.Freq {
	case Daily:
		return ceilDiv(daysBetween(baseDay, windowDay), rule.Interval)
	case Weekly:
		return ceilDiv(daysBetween(baseDay, windowDay), 7*rule.Interval)
	case Monthly:
		months := (windowDay.Year()-baseDay.Year())*12 + int(windowDay.Month()) - int(baseDay.Month())
		return ceilDiv(months, rule.Interval)
	case Yearly:
		return ceilDiv(windowDay.Year()-baseDay.Year(), rule.Interval)
	default:
		return 0
	}
}

// occurrenceAtStep materializes the n-th occurrence of the rule. Monthly and
// yearly steps preserve the base day of month, clamped to the target month's
// last day (day 31 in a 30-day month, Feb 29 on a non-leap year) instead of
// rolling into the next month.
func occurrenceAtStep(clk clock.Clock, rule Rule, base time.Time, n int) time.Time {
	switch rule.Freq {
	case Daily:
		return base.AddDate(0, 0, n*rule.Interval)
	case Weekly:
		return base.AddDate(0, 0, n*7*rule.Interval)
	case Monthly:
		return monthStep(clk, base, n*rule.Interval)
	case Yearly:
		return clampedDate(clk, base.Year()+n*rule.Interval, base.Month(), base)
	default:
		return base
	}
}

func monthStep(clk clock.Clock, base time.Time, months int) time.Time {
	total := int(base.Month()) - 1 + months
	year := base.Year() + total/12
	month := time.Month(total%12 + 1)
	return clampedDate(clk, year, month, base)
}

func clampedDate(clk clock.Clock, year int, month time.Month, base time.Time) time.Time {
	day := base.Day()
	if last := daysIn(clk, year, month); day > last {
		day = last
	}
	h, m, s := base.Clock()
	return time.Date(year, month, day, h, m, s, base.Nanosecond(), clk.Location())
}

func daysIn(clk clock.Clock, year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, clk.Location()).Day()
}

// daysBetween counts calendar days from a to b, both local midnights. The
// rounding absorbs DST transitions that make a day 23 or 25 hours long.
func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
