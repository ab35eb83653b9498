package core

import (
	"errors"
	"strings"
	"time"
)

const (
	ReminderInApp ReminderMethod = "in-app"
	ReminderPush  ReminderMethod = "push"
	ReminderEmail ReminderMethod = "email"
)

type (
	// ReminderMethod is the delivery channel for an event reminder.
	ReminderMethod string

	// Reminder describes one notification to fire before an occurrence starts.
	Reminder struct {
		MinutesBefore int
		Method        ReminderMethod
	}

	// CalendarEvent is the persisted event record. Occurrences are derived
	// from it at view time and never stored.
	CalendarEvent struct {
		ID            string
		Title         string
		Description   string
		Location      string
		StartAt       time.Time
		EndAt         time.Time
		IsAllDay      bool
		IsShared      bool
		ColorOverride string
		// RecurrenceRule is a compact FREQ=...;INTERVAL=...;UNTIL=... rule.
		// Empty means a single, non-repeating event.
		RecurrenceRule string
		Reminders      []Reminder

		CreatedBy string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// ColorPreferences is the per-user color-preference record consulted when
	// an event has no explicit color override.
	ColorPreferences struct {
		UserID        string
		PersonalColor string
		SharedColor   string
	}
)

// Default colors when no override and no preference record exists.
const (
	DefaultSharedColor   = "#ec4899"
	DefaultPersonalColor = "#0ea5e9"
)

var (
	ErrEmptyTitle        = errors.New("empty title")
	ErrTitleTooLong      = errors.New("title too long (max 200 characters)")
	ErrEndBeforeStart    = errors.New("end time before start time")
	ErrZeroStart         = errors.New("start time cannot be zero")
	ErrNegativeLeadTime  = errors.New("reminder minutes must be non-negative")
	ErrUnknownReminder   = errors.New("unknown reminder method")
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")
	ErrEventNotFound     = errors.New("event not found")
	ErrInvalidColor      = errors.New("invalid color value")
)

func (m ReminderMethod) Validate() error {
	switch m {
	case ReminderInApp, ReminderPush, ReminderEmail:
		return nil
	default:
		return ErrUnknownReminder
	}
}

func (r Reminder) Validate() error {
	if r.MinutesBefore < 0 {
		return ErrNegativeLeadTime
	}
	return r.Method.Validate()
}

// Duration is the fixed length every occurrence of the event inherits.
func (e CalendarEvent) Duration() time.Duration {
	return e.EndAt.Sub(e.StartAt)
}

// Color resolves the display color: explicit override first, then the user's
// preference record, then the built-in defaults.
func (e CalendarEvent) Color(prefs *ColorPreferences) string {
	if e.ColorOverride != "" {
		return e.ColorOverride
	}
	if prefs != nil {
		if e.IsShared && prefs.SharedColor != "" {
			return prefs.SharedColor
		}
		if !e.IsShared && prefs.PersonalColor != "" {
			return prefs.PersonalColor
		}
	}
	if e.IsShared {
		return DefaultSharedColor
	}
	return DefaultPersonalColor
}

func (e CalendarEvent) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return ErrTitleTooLong
	}
	if e.StartAt.IsZero() {
		return ErrZeroStart
	}
	if e.EndAt.Before(e.StartAt) {
		return ErrEndBeforeStart
	}
	for _, r := range e.Reminders {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (p ColorPreferences) Validate() error {
	for _, c := range []string{p.PersonalColor, p.SharedColor} {
		if c == "" {
			continue
		}
		if !validHexColor(c) {
			return ErrInvalidColor
		}
	}
	return nil
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
