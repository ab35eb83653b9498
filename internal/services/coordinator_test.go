package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hearth/internal/clock"
	"hearth/internal/core"
)

type fakeStore struct {
	mu         sync.Mutex
	fetchCalls int
	onFetch    func(window core.QueryWindow) ([]core.CalendarEvent, error)

	createErr error
	updateErr error
	deleteErr error
}

func (f *fakeStore) FetchEvents(_ context.Context, window core.QueryWindow) ([]core.CalendarEvent, error) {
	f.mu.Lock()
	f.fetchCalls++
	fn := f.onFetch
	f.mu.Unlock()

	if fn != nil {
		return fn(window)
	}
	return nil, nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeStore) CreateEvent(_ context.Context, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if f.createErr != nil {
		return core.CalendarEvent{}, f.createErr
	}
	ev.ID = "created-id"
	return ev, nil
}

func (f *fakeStore) UpdateEvent(_ context.Context, id string, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if f.updateErr != nil {
		return core.CalendarEvent{}, f.updateErr
	}
	ev.ID = id
	return ev, nil
}

func (f *fakeStore) DeleteEvent(_ context.Context, id string) error {
	return f.deleteErr
}

func testEvent(id, title string) core.CalendarEvent {
	start := time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)
	return core.CalendarEvent{
		ID:      id,
		Title:   title,
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	}
}

func septemberWindow() core.QueryWindow {
	return core.QueryWindow{
		StartAt: time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, time.October, 3, 23, 59, 59, 0, time.UTC),
	}
}

func TestLoadWindow(t *testing.T) {
	store := &fakeStore{
		onFetch: func(core.QueryWindow) ([]core.CalendarEvent, error) {
			return []core.CalendarEvent{testEvent("a", "A")}, nil
		},
	}
	coord := NewCoordinator(clock.New(time.UTC), store)

	evs, err := coord.LoadWindow(context.Background(), septemberWindow())
	if err != nil {
		t.Fatalf("LoadWindow() error = %v", err)
	}
	if len(evs) != 1 || evs[0].ID != "a" {
		t.Errorf("LoadWindow() = %v, want [a]", evs)
	}
	if got := coord.Events(); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Events() = %v, want [a]", got)
	}

	window, ok := coord.Window()
	if !ok {
		t.Fatal("Window() reports no active window")
	}
	if !window.StartAt.Equal(septemberWindow().StartAt) {
		t.Errorf("Window().StartAt = %v, want %v", window.StartAt, septemberWindow().StartAt)
	}
}

func TestLoadWindowError(t *testing.T) {
	store := &fakeStore{
		onFetch: func(core.QueryWindow) ([]core.CalendarEvent, error) {
			return nil, errors.New("backend down")
		},
	}
	coord := NewCoordinator(clock.New(time.UTC), store)

	if _, err := coord.LoadWindow(context.Background(), septemberWindow()); err == nil {
		t.Fatal("LoadWindow() = nil error, want error")
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	store := &fakeStore{}
	store.onFetch = func(window core.QueryWindow) ([]core.CalendarEvent, error) {
		// The first window's fetch stalls until released; the second
		// returns immediately.
		if window.StartAt.Equal(septemberWindow().StartAt) {
			<-release
			return []core.CalendarEvent{testEvent("stale", "Stale")}, nil
		}
		return []core.CalendarEvent{testEvent("fresh", "Fresh")}, nil
	}
	coord := NewCoordinator(clock.New(time.UTC), store)

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		coord.LoadWindow(context.Background(), septemberWindow())
	}()

	// Wait for the slow fetch to be in flight before superseding it.
	for i := 0; store.calls() == 0 && i < 100; i++ {
		time.Sleep(5 * time.Millisecond)
	}

	october := core.QueryWindow{
		StartAt: time.Date(2026, time.September, 27, 0, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, time.October, 31, 23, 59, 59, 0, time.UTC),
	}
	if _, err := coord.LoadWindow(context.Background(), october); err != nil {
		t.Fatalf("LoadWindow(october) error = %v", err)
	}

	close(release)
	<-slowDone

	// The slow response arrived after a newer load and must not win.
	got := coord.Events()
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("Events() after stale response = %v, want [fresh]", got)
	}
}

func TestRefreshWithoutWindowIsNoop(t *testing.T) {
	store := &fakeStore{}
	coord := NewCoordinator(clock.New(time.UTC), store)

	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if store.calls() != 0 {
		t.Errorf("fetch calls = %d, want 0", store.calls())
	}
}

func TestCreateEventRollsBackOnFailure(t *testing.T) {
	store := &fakeStore{createErr: errors.New("write rejected")}
	coord := NewCoordinator(clock.New(time.UTC), store)

	if _, err := coord.LoadWindow(context.Background(), septemberWindow()); err != nil {
		t.Fatalf("LoadWindow() error = %v", err)
	}

	_, err := coord.CreateEvent(context.Background(), testEvent("", "Doomed"))
	if err == nil {
		t.Fatal("CreateEvent() = nil error, want error")
	}
	if got := coord.Events(); len(got) != 0 {
		t.Errorf("Events() after rollback = %v, want empty", got)
	}
}

func TestCreateEventReplacesOptimisticEntry(t *testing.T) {
	store := &fakeStore{}
	coord := NewCoordinator(clock.New(time.UTC), store)

	created, err := coord.CreateEvent(context.Background(), testEvent("", "Picnic"))
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if created.ID != "created-id" {
		t.Errorf("created ID = %q, want created-id", created.ID)
	}

	got := coord.Events()
	if len(got) != 1 || got[0].ID != "created-id" {
		t.Errorf("Events() = %v, want the authoritative record", got)
	}
}

func TestCreateEventRejectsInvalid(t *testing.T) {
	store := &fakeStore{}
	coord := NewCoordinator(clock.New(time.UTC), store)

	invalid := testEvent("", "")
	if _, err := coord.CreateEvent(context.Background(), invalid); !errors.Is(err, core.ErrEmptyTitle) {
		t.Errorf("CreateEvent() error = %v, want ErrEmptyTitle", err)
	}
}

func TestUpdateEventRollsBackOnFailure(t *testing.T) {
	store := &fakeStore{
		onFetch: func(core.QueryWindow) ([]core.CalendarEvent, error) {
			return []core.CalendarEvent{testEvent("a", "Original")}, nil
		},
		updateErr: errors.New("write rejected"),
	}
	coord := NewCoordinator(clock.New(time.UTC), store)

	if _, err := coord.LoadWindow(context.Background(), septemberWindow()); err != nil {
		t.Fatalf("LoadWindow() error = %v", err)
	}

	if _, err := coord.UpdateEvent(context.Background(), "a", testEvent("a", "Changed")); err == nil {
		t.Fatal("UpdateEvent() = nil error, want error")
	}

	got := coord.Events()
	if len(got) != 1 || got[0].Title != "Original" {
		t.Errorf("Events() after rollback = %v, want the original record", got)
	}
}

func TestDeleteEventRollsBackOnFailure(t *testing.T) {
	store := &fakeStore{
		onFetch: func(core.QueryWindow) ([]core.CalendarEvent, error) {
			return []core.CalendarEvent{testEvent("a", "Keep")}, nil
		},
		deleteErr: errors.New("write rejected"),
	}
	coord := NewCoordinator(clock.New(time.UTC), store)

	if _, err := coord.LoadWindow(context.Background(), septemberWindow()); err != nil {
		t.Fatalf("LoadWindow() error = %v", err)
	}

	if err := coord.DeleteEvent(context.Background(), "a"); err == nil {
		t.Fatal("DeleteEvent() = nil error, want error")
	}
	if got := coord.Events(); len(got) != 1 {
		t.Errorf("Events() after rollback = %v, want one record", got)
	}
}

func TestDeleteEventRemovesFromCache(t *testing.T) {
	store := &fakeStore{
		onFetch: func(core.QueryWindow) ([]core.CalendarEvent, error) {
			return []core.CalendarEvent{testEvent("a", "A"), testEvent("b", "B")}, nil
		},
	}
	coord := NewCoordinator(clock.New(time.UTC), store)

	if _, err := coord.LoadWindow(context.Background(), septemberWindow()); err != nil {
		t.Fatalf("LoadWindow() error = %v", err)
	}

	if err := coord.DeleteEvent(context.Background(), "a"); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}

	got := coord.Events()
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Events() = %v, want [b]", got)
	}
}

type fakeFeed struct {
	notifications int
}

func (f fakeFeed) Subscribe(_ context.Context, notify func()) error {
	for i := 0; i < f.notifications; i++ {
		notify()
	}
	return nil
}

func TestWatchChangesTriggersRefetch(t *testing.T) {
	store := &fakeStore{
		onFetch: func(core.QueryWindow) ([]core.CalendarEvent, error) {
			return []core.CalendarEvent{testEvent("a", "A")}, nil
		},
	}
	coord := NewCoordinator(clock.New(time.UTC), store)

	if _, err := coord.LoadWindow(context.Background(), septemberWindow()); err != nil {
		t.Fatalf("LoadWindow() error = %v", err)
	}

	if err := coord.WatchChanges(context.Background(), fakeFeed{notifications: 3}); err != nil {
		t.Fatalf("WatchChanges() error = %v", err)
	}

	// Initial load plus one refetch per notification.
	if got := store.calls(); got != 4 {
		t.Errorf("fetch calls = %d, want 4", got)
	}
}
