package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"hearth/internal/core"
)

func testEvent(title string) core.CalendarEvent {
	start := time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)
	return core.CalendarEvent{
		Title:   title,
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	}
}

func septemberWindow() core.QueryWindow {
	return core.QueryWindow{
		StartAt: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, time.September, 30, 23, 59, 59, 0, time.UTC),
	}
}

func TestCreateEvent(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateEvent(ctx, testEvent("Dentist"))
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if created.ID == "" {
		t.Error("CreateEvent() assigned no ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("CreateEvent() left timestamps unset")
	}

	if _, err := store.CreateEvent(ctx, core.CalendarEvent{}); err == nil {
		t.Error("CreateEvent(invalid) = nil error, want error")
	}
}

func TestUpdateEvent(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateEvent(ctx, testEvent("Dentist"))
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	changed := created
	changed.Title = "Orthodontist"
	updated, err := store.UpdateEvent(ctx, created.ID, changed)
	if err != nil {
		t.Fatalf("UpdateEvent() error = %v", err)
	}
	if updated.Title != "Orthodontist" {
		t.Errorf("Title = %q, want Orthodontist", updated.Title)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("UpdateEvent() altered CreatedAt")
	}

	if _, err := store.UpdateEvent(ctx, "missing", changed); !errors.Is(err, core.ErrEventNotFound) {
		t.Errorf("UpdateEvent(missing) error = %v, want ErrEventNotFound", err)
	}
}

func TestDeleteEvent(t *testing.T) {
	store := New()
	ctx := context.Background()

	created, err := store.CreateEvent(ctx, testEvent("Dentist"))
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if err := store.DeleteEvent(ctx, created.ID); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}
	if err := store.DeleteEvent(ctx, created.ID); !errors.Is(err, core.ErrEventNotFound) {
		t.Errorf("DeleteEvent(again) error = %v, want ErrEventNotFound", err)
	}
}

func TestFetchEventsWindowSemantics(t *testing.T) {
	inWindow := testEvent("In window")

	before := testEvent("Before window")
	before.StartAt = time.Date(2026, time.August, 1, 9, 0, 0, 0, time.UTC)
	before.EndAt = before.StartAt.Add(time.Hour)

	// Recurring with a base start far before the window: must still be a
	// candidate, expansion decides later whether it lands inside.
	oldRecurring := testEvent("Old recurring")
	oldRecurring.StartAt = time.Date(2020, time.January, 6, 9, 0, 0, 0, time.UTC)
	oldRecurring.EndAt = oldRecurring.StartAt.Add(time.Hour)
	oldRecurring.RecurrenceRule = "FREQ=WEEKLY"

	// Straddles the window start.
	straddling := testEvent("Straddling")
	straddling.StartAt = time.Date(2026, time.August, 31, 22, 0, 0, 0, time.UTC)
	straddling.EndAt = time.Date(2026, time.September, 1, 2, 0, 0, 0, time.UTC)

	store := NewSeeded(inWindow, before, oldRecurring, straddling)

	got, err := store.FetchEvents(context.Background(), septemberWindow())
	if err != nil {
		t.Fatalf("FetchEvents() error = %v", err)
	}

	titles := make(map[string]bool, len(got))
	for _, ev := range got {
		titles[ev.Title] = true
	}

	for _, want := range []string{"In window", "Old recurring", "Straddling"} {
		if !titles[want] {
			t.Errorf("FetchEvents() missing %q", want)
		}
	}
	if titles["Before window"] {
		t.Error("FetchEvents() returned a one-off outside the window")
	}
}

func TestColorPreferences(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Unknown user gets the zero record with the ID filled in.
	prefs, err := store.ColorPreferences(ctx, "ada")
	if err != nil {
		t.Fatalf("ColorPreferences() error = %v", err)
	}
	if prefs.UserID != "ada" || prefs.PersonalColor != "" || prefs.SharedColor != "" {
		t.Errorf("ColorPreferences() = %+v, want zero record for ada", prefs)
	}

	saved, err := store.UpdateColorPreferences(ctx, core.ColorPreferences{
		UserID:        "ada",
		PersonalColor: "#112233",
		SharedColor:   "#445566",
	})
	if err != nil {
		t.Fatalf("UpdateColorPreferences() error = %v", err)
	}
	if saved.PersonalColor != "#112233" {
		t.Errorf("PersonalColor = %q, want #112233", saved.PersonalColor)
	}

	if _, err := store.UpdateColorPreferences(ctx, core.ColorPreferences{
		UserID:        "ada",
		PersonalColor: "purple",
	}); !errors.Is(err, core.ErrInvalidColor) {
		t.Errorf("UpdateColorPreferences(bad color) error = %v, want ErrInvalidColor", err)
	}
}

func TestSubscribeReceivesMutations(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notified := make(chan struct{}, 8)
	subscribed := make(chan struct{})
	go func() {
		close(subscribed)
		store.Subscribe(ctx, func() {
			notified <- struct{}{}
		})
	}()
	<-subscribed
	// Give the subscriber loop a moment to register its channel.
	time.Sleep(20 * time.Millisecond)

	if _, err := store.CreateEvent(ctx, testEvent("Dentist")); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received after CreateEvent")
	}
}
