// Package worker runs the background reminder dispatcher. It periodically
// expands upcoming occurrences and fires any reminder whose lead time has
// elapsed.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hearth/internal/calendar"
	"hearth/internal/clock"
	"hearth/internal/core"
	"hearth/internal/events"
)

// Dispatcher delivers a single reminder. Implementations decide the channel
// (log line, push gateway, mail relay).
type Dispatcher interface {
	Dispatch(ctx context.Context, occ core.Occurrence, rem core.Reminder) error
}

// LogDispatcher writes reminders to the structured log. It is the default
// delivery channel and the one used in development.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, occ core.Occurrence, rem core.Reminder) error {
	slog.InfoContext(ctx, "Reminder due",
		"event_id", occ.Event.ID,
		"event_title", occ.Event.Title,
		"occurrence_start", occ.StartAt,
		"minutes_before", rem.MinutesBefore,
		"method", string(rem.Method))
	return nil
}

// ReminderWorker scans upcoming occurrences and dispatches due reminders.
// Each reminder fires once per occurrence; delivery is at-most-once within a
// process lifetime.
type ReminderWorker struct {
	clk        clock.Clock
	store      events.Store
	dispatcher Dispatcher
	lookahead  time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewReminderWorker creates a worker. The lookahead bounds how far ahead
// occurrences are expanded, so it must exceed the longest reminder lead time
// in use.
func NewReminderWorker(clk clock.Clock, store events.Store, dispatcher Dispatcher, lookahead time.Duration) *ReminderWorker {
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}
	return &ReminderWorker{
		clk:        clk,
		store:      store,
		dispatcher: dispatcher,
		lookahead:  lookahead,
		sent:       make(map[string]time.Time),
	}
}

// Run performs a single scan: fetch, expand, dispatch everything due.
func (w *ReminderWorker) Run(ctx context.Context) error {
	now := time.Now().In(w.clk.Location())
	window := core.QueryWindow{StartAt: now, EndAt: now.Add(w.lookahead)}

	evs, err := w.store.FetchEvents(ctx, window)
	if err != nil {
		return fmt.Errorf("fetch events for reminder scan: %w", err)
	}

	due := 0
	for _, ev := range evs {
		if len(ev.Reminders) == 0 {
			continue
		}
		for _, occ := range calendar.Expand(w.clk, ev, window) {
			for _, rem := range occ.Event.Reminders {
				fireAt := occ.StartAt.Add(-time.Duration(rem.MinutesBefore) * time.Minute)
				if fireAt.After(now) {
					continue
				}
				if !w.markSent(occ, rem, now) {
					continue
				}
				if err := w.dispatcher.Dispatch(ctx, occ, rem); err != nil {
					slog.ErrorContext(ctx, "Reminder dispatch failed",
						"event_id", occ.Event.ID,
						"error", err)
					continue
				}
				due++
			}
		}
	}

	w.prune(now)

	if due > 0 {
		slog.InfoContext(ctx, "Reminder scan completed", "dispatched", due, "events", len(evs))
	}
	return nil
}

// Start schedules periodic scans with a cron expression and returns a stop
// function. The first scan runs immediately.
func (w *ReminderWorker) Start(ctx context.Context, schedule string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := w.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "Reminder scan failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}

	if err := w.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial reminder scan failed", "error", err)
	}

	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

// markSent records a reminder as dispatched. Returns false when it already
// fired for this occurrence.
func (w *ReminderWorker) markSent(occ core.Occurrence, rem core.Reminder, now time.Time) bool {
	key := fmt.Sprintf("%s/%d/%d/%s", occ.Event.ID, occ.StartAt.Unix(), rem.MinutesBefore, rem.Method)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.sent[key]; dup {
		return false
	}
	w.sent[key] = now
	return true
}

// prune drops dedupe entries old enough that their occurrence has passed.
func (w *ReminderWorker) prune(now time.Time) {
	cutoff := now.Add(-2 * w.lookahead)

	w.mu.Lock()
	defer w.mu.Unlock()
	for key, at := range w.sent {
		if at.Before(cutoff) {
			delete(w.sent, key)
		}
	}
}
