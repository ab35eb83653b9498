package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"hearth/internal/core"
)

// Store is an in-memory event store used for local development and tests.
// All mutation paths replace whole records; nothing is patched in place.
type Store struct {
	mu     sync.Mutex
	events map[string]core.CalendarEvent
	prefs  map[string]core.ColorPreferences

	subsMu sync.Mutex
	subs   []chan struct{}
}

func New() *Store {
	return &Store{
		events: make(map[string]core.CalendarEvent),
		prefs:  make(map[string]core.ColorPreferences),
	}
}

// NewSeeded builds a store pre-populated with events, useful in tests.
func NewSeeded(evs ...core.CalendarEvent) *Store {
	s := New()
	for _, ev := range evs {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		s.events[ev.ID] = ev
	}
	return s
}

// FetchEvents implements events.Store: one-off events overlapping the window
// plus every recurring event regardless of base start.
func (s *Store) FetchEvents(_ context.Context, window core.QueryWindow) ([]core.CalendarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.CalendarEvent
	for _, ev := range s.events {
		if ev.RecurrenceRule != "" || window.Overlaps(ev.StartAt, ev.EndAt) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) CreateEvent(_ context.Context, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	s.mu.Lock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	s.events[ev.ID] = ev
	s.mu.Unlock()

	s.notify()
	return ev, nil
}

func (s *Store) UpdateEvent(_ context.Context, id string, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	s.mu.Lock()
	existing, ok := s.events[id]
	if !ok {
		s.mu.Unlock()
		return core.CalendarEvent{}, core.ErrEventNotFound
	}
	ev.ID = id
	ev.CreatedBy = existing.CreatedBy
	ev.CreatedAt = existing.CreatedAt
	ev.UpdatedAt = time.Now()
	s.events[id] = ev
	s.mu.Unlock()

	s.notify()
	return ev, nil
}

func (s *Store) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.events[id]; !ok {
		s.mu.Unlock()
		return core.ErrEventNotFound
	}
	delete(s.events, id)
	s.mu.Unlock()

	s.notify()
	return nil
}

// ColorPreferences implements events.PreferencesReader. A user without a
// stored record gets the zero record; defaults are resolved at color time.
func (s *Store) ColorPreferences(_ context.Context, userID string) (core.ColorPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs := s.prefs[userID]
	prefs.UserID = userID
	return prefs, nil
}

func (s *Store) UpdateColorPreferences(_ context.Context, prefs core.ColorPreferences) (core.ColorPreferences, error) {
	if err := prefs.Validate(); err != nil {
		return core.ColorPreferences{}, err
	}
	s.mu.Lock()
	s.prefs[prefs.UserID] = prefs
	s.mu.Unlock()
	return prefs, nil
}

// Subscribe implements events.ChangeFeed with an in-process notification
// channel, so a single binary gets the same invalidation behavior as the
// AMQP-backed feed.
func (s *Store) Subscribe(ctx context.Context, notify func()) error {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs = append(s.subs, ch)
	s.subsMu.Unlock()

	defer func() {
		s.subsMu.Lock()
		for i, sub := range s.subs {
			if sub == ch {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.subsMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
			notify()
		}
	}
}

func (s *Store) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
