package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

type (
	// Frequency is the cadence of a recurrence rule.
	Frequency string

	// Rule is a parsed recurrence rule of the compact form
	// FREQ=<DAILY|WEEKLY|MONTHLY|YEARLY>[;INTERVAL=<n>][;UNTIL=<timestamp>].
	// Field order in the source string is not significant.
	Rule struct {
		Freq     Frequency
		Interval int
		// Until strictly excludes occurrences at or after it. Zero means
		// unbounded recurrence, limited in practice by the query window.
		Until time.Time
	}
)

// UNTIL accepts the compact local forms 20060102T150405 and 20060102.
var untilLayouts = []string{"20060102T150405", "20060102"}

func (f Frequency) valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// ParseRule parses a compact recurrence rule string. Timestamps in UNTIL are
// interpreted in the clock's timezone.
func ParseRule(clk clock.Clock, s string) (Rule, error) {
	rule := Rule{Interval: 1}
	seenFreq := false

	for _, field := range strings.Split(strings.TrimSpace(s), ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, "=")
		if !found {
			return Rule{}, fmt.Errorf("%w: malformed field %q", core.ErrInvalidRecurrence, field)
		}

		switch strings.ToUpper(key) {
		case "FREQ":
			freq := Frequency(strings.ToUpper(value))
			if !freq.valid() {
				return Rule{}, fmt.Errorf("%w: unknown frequency %q", core.ErrInvalidRecurrence, value)
			}
			rule.Freq = freq
			seenFreq = true
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("%w: interval must be a positive integer, got %q", core.ErrInvalidRecurrence, value)
			}
			rule.Interval = n
		case "UNTIL":
			until, err := parseUntil(clk, value)
			if err != nil {
				return Rule{}, fmt.Errorf("%w: %v", core.ErrInvalidRecurrence, err)
			}
			rule.Until = until
		default:
			return Rule{}, fmt.Errorf("%w: unsupported field %q", core.ErrInvalidRecurrence, key)
		}
	}

	if !seenFreq {
		return Rule{}, fmt.Errorf("%w: missing FREQ", core.ErrInvalidRecurrence)
	}
	return rule, nil
}

// ValidateRule checks a rule string before it is allowed anywhere near
// persistence. An empty string is valid (single, non-repeating event).
func ValidateRule(clk clock.Clock, s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := ParseRule(clk, s)
	return err
}

func parseUntil(clk clock.Clock, value string) (time.Time, error) {
	for _, layout := range untilLayouts {
		if t, err := time.ParseInLocation(layout, value, clk.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed UNTIL timestamp %q", value)
}
