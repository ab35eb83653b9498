package calendar

import (
	"errors"
	"testing"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

func TestParseRule(t *testing.T) {
	clk := clock.New(time.UTC)

	tests := []struct {
		name string
		in   string
		want Rule
	}{
		{
			name: "freq only defaults interval to 1",
			in:   "FREQ=DAILY",
			want: Rule{Freq: Daily, Interval: 1},
		},
		{
			name: "freq with interval",
			in:   "FREQ=WEEKLY;INTERVAL=2",
			want: Rule{Freq: Weekly, Interval: 2},
		},
		{
			name: "field order is not significant",
			in:   "INTERVAL=3;FREQ=MONTHLY",
			want: Rule{Freq: Monthly, Interval: 3},
		},
		{
			name: "lowercase keys and values",
			in:   "freq=yearly;interval=2",
			want: Rule{Freq: Yearly, Interval: 2},
		},
		{
			name: "until with datetime layout",
			in:   "FREQ=DAILY;UNTIL=20261231T180000",
			want: Rule{Freq: Daily, Interval: 1, Until: time.Date(2026, time.December, 31, 18, 0, 0, 0, time.UTC)},
		},
		{
			name: "until with date layout",
			in:   "FREQ=DAILY;UNTIL=20261231",
			want: Rule{Freq: Daily, Interval: 1, Until: time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)},
		},
		{
			name: "surrounding whitespace tolerated",
			in:   "  FREQ=DAILY ; INTERVAL=2  ",
			want: Rule{Freq: Daily, Interval: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRule(clk, tt.in)
			if err != nil {
				t.Fatalf("ParseRule(%q) error = %v", tt.in, err)
			}
			if got.Freq != tt.want.Freq || got.Interval != tt.want.Interval || !got.Until.Equal(tt.want.Until) {
				t.Errorf("ParseRule(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRuleErrors(t *testing.T) {
	clk := clock.New(time.UTC)

	tests := []struct {
		name string
		in   string
	}{
		{"missing freq", "INTERVAL=2"},
		{"empty string", ""},
		{"unknown frequency", "FREQ=HOURLY"},
		{"zero interval", "FREQ=DAILY;INTERVAL=0"},
		{"negative interval", "FREQ=DAILY;INTERVAL=-1"},
		{"non-numeric interval", "FREQ=DAILY;INTERVAL=two"},
		{"malformed field", "FREQ=DAILY;INTERVAL"},
		{"unsupported field", "FREQ=WEEKLY;BYDAY=MO"},
		{"bad until", "FREQ=DAILY;UNTIL=31-12-2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRule(clk, tt.in)
			if err == nil {
				t.Fatalf("ParseRule(%q) = nil error, want error", tt.in)
			}
			if !errors.Is(err, core.ErrInvalidRecurrence) {
				t.Errorf("ParseRule(%q) error = %v, want ErrInvalidRecurrence", tt.in, err)
			}
		})
	}
}

func TestValidateRule(t *testing.T) {
	clk := clock.New(time.UTC)

	// Empty means a one-off event and is always valid.
	if err := ValidateRule(clk, ""); err != nil {
		t.Errorf("ValidateRule(\"\") = %v, want nil", err)
	}
	if err := ValidateRule(clk, "   "); err != nil {
		t.Errorf("ValidateRule(blank) = %v, want nil", err)
	}

	if err := ValidateRule(clk, "FREQ=DAILY"); err != nil {
		t.Errorf("ValidateRule(FREQ=DAILY) = %v, want nil", err)
	}
	if err := ValidateRule(clk, "FREQ=NEVER"); err == nil {
		t.Error("ValidateRule(FREQ=NEVER) = nil, want error")
	}
}
