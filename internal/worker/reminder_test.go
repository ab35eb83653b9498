package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
	"hearth/internal/events/memory"
)

type captureDispatcher struct {
	mu       sync.Mutex
	fired    []string
	failWith error
}

func (d *captureDispatcher) Dispatch(_ context.Context, occ core.Occurrence, rem core.Reminder) error {
	if d.failWith != nil {
		return d.failWith
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fired = append(d.fired, occ.Event.ID)
	return nil
}

func (d *captureDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fired)
}

func eventStartingIn(id string, in time.Duration, reminders ...core.Reminder) core.CalendarEvent {
	start := time.Now().Add(in)
	return core.CalendarEvent{
		ID:        id,
		Title:     "Event " + id,
		StartAt:   start,
		EndAt:     start.Add(30 * time.Minute),
		Reminders: reminders,
	}
}

func TestRunDispatchesDueReminder(t *testing.T) {
	// Starts in 10 minutes with a 30 minute lead: already due.
	ev := eventStartingIn("due", 10*time.Minute, core.Reminder{MinutesBefore: 30, Method: core.ReminderPush})
	store := memory.NewSeeded(ev)
	disp := &captureDispatcher{}
	w := NewReminderWorker(clock.New(time.UTC), store, disp, time.Hour)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if disp.count() != 1 {
		t.Errorf("dispatched = %d, want 1", disp.count())
	}
}

func TestRunSkipsNotYetDueReminder(t *testing.T) {
	// Starts in 50 minutes with a 10 minute lead: fires in 40 minutes.
	ev := eventStartingIn("later", 50*time.Minute, core.Reminder{MinutesBefore: 10, Method: core.ReminderPush})
	store := memory.NewSeeded(ev)
	disp := &captureDispatcher{}
	w := NewReminderWorker(clock.New(time.UTC), store, disp, time.Hour)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if disp.count() != 0 {
		t.Errorf("dispatched = %d, want 0", disp.count())
	}
}

func TestRunDedupesAcrossScans(t *testing.T) {
	ev := eventStartingIn("due", 10*time.Minute, core.Reminder{MinutesBefore: 30, Method: core.ReminderPush})
	store := memory.NewSeeded(ev)
	disp := &captureDispatcher{}
	w := NewReminderWorker(clock.New(time.UTC), store, disp, time.Hour)

	ctx := context.Background()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := w.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if disp.count() != 1 {
		t.Errorf("dispatched across two scans = %d, want 1", disp.count())
	}
}

func TestRunMultipleRemindersPerOccurrence(t *testing.T) {
	ev := eventStartingIn("multi", 5*time.Minute,
		core.Reminder{MinutesBefore: 10, Method: core.ReminderPush},
		core.Reminder{MinutesBefore: 60, Method: core.ReminderEmail},
	)
	store := memory.NewSeeded(ev)
	disp := &captureDispatcher{}
	w := NewReminderWorker(clock.New(time.UTC), store, disp, time.Hour)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Both leads have elapsed for an occurrence five minutes out.
	if disp.count() != 2 {
		t.Errorf("dispatched = %d, want 2", disp.count())
	}
}

func TestRunRecurringEvent(t *testing.T) {
	// The base start was a week ago; the occurrence inside the scan window is
	// the one a week later, due now.
	base := eventStartingIn("daily", 10*time.Minute, core.Reminder{MinutesBefore: 30, Method: core.ReminderInApp})
	base.StartAt = base.StartAt.AddDate(0, 0, -7)
	base.EndAt = base.EndAt.AddDate(0, 0, -7)
	base.RecurrenceRule = "FREQ=WEEKLY"

	store := memory.NewSeeded(base)
	disp := &captureDispatcher{}
	w := NewReminderWorker(clock.New(time.UTC), store, disp, time.Hour)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if disp.count() != 1 {
		t.Errorf("dispatched = %d, want 1", disp.count())
	}
}

func TestRunContinuesAfterDispatchFailure(t *testing.T) {
	ev := eventStartingIn("due", 10*time.Minute, core.Reminder{MinutesBefore: 30, Method: core.ReminderPush})
	store := memory.NewSeeded(ev)
	disp := &captureDispatcher{failWith: context.DeadlineExceeded}
	w := NewReminderWorker(clock.New(time.UTC), store, disp, time.Hour)

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v, dispatch failures must not abort the scan", err)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := NewReminderWorker(clock.New(time.UTC), memory.New(), &captureDispatcher{}, time.Hour)

	if _, err := w.Start(context.Background(), "not a cron line"); err == nil {
		t.Fatal("Start(bad schedule) = nil error, want error")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	ev := eventStartingIn("due", 10*time.Minute, core.Reminder{MinutesBefore: 30, Method: core.ReminderPush})
	store := memory.NewSeeded(ev)
	disp := &captureDispatcher{}
	w := NewReminderWorker(clock.New(time.UTC), store, disp, time.Hour)

	stop, err := w.Start(context.Background(), "@hourly")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer stop()

	if disp.count() != 1 {
		t.Errorf("dispatched after Start = %d, want 1", disp.count())
	}
}
