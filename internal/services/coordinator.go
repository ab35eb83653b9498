package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"hearth/internal/clock"
	"hearth/internal/core"
	"hearth/internal/events"
)

// Coordinator owns the in-memory cache of raw calendar events for the active
// view window and orchestrates fetches, CRUD pass-through, and push-triggered
// refetches against the external event store.
//
// Consistency policy is last-write-wins: every mutation and every refetch
// replaces whole records, never patches fields, and a remote change
// notification triggers a full refetch rather than an incremental diff.
type Coordinator struct {
	clk   clock.Clock
	store events.Store

	mu         sync.Mutex
	window     core.QueryWindow
	hasWindow  bool
	events     []core.CalendarEvent
	generation uint64

	// Collapses concurrent refetches of the same window into one backend
	// call (a push invalidation arriving while a view-change fetch is in
	// flight must not double-hit the store).
	group singleflight.Group
}

func NewCoordinator(clk clock.Clock, store events.Store) *Coordinator {
	return &Coordinator{clk: clk, store: store}
}

// LoadWindow makes window the active view and fetches its candidate events.
// Each call supersedes any fetch still in flight: responses are tagged with
// the generation that requested them and discarded if a newer load started
// meanwhile, so a slow response can never overwrite fresher state.
func (c *Coordinator) LoadWindow(ctx context.Context, window core.QueryWindow) ([]core.CalendarEvent, error) {
	c.mu.Lock()
	c.window = window
	c.hasWindow = true
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	return c.fetch(ctx, window, gen)
}

// Refresh refetches the active window. Called on push invalidation; a no-op
// when no window has been loaded yet.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasWindow {
		c.mu.Unlock()
		return nil
	}
	window := c.window
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	_, err := c.fetch(ctx, window, gen)
	return err
}

func (c *Coordinator) fetch(ctx context.Context, window core.QueryWindow, gen uint64) ([]core.CalendarEvent, error) {
	key := fmt.Sprintf("%d/%d", window.StartAt.Unix(), window.EndAt.Unix())

	fetched, err, _ := c.group.Do(key, func() (any, error) {
		return c.store.FetchEvents(ctx, window)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	evs := fetched.([]core.CalendarEvent)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.generation {
		// A newer load superseded this response; the fresher state stands.
		slog.DebugContext(ctx, "Discarding stale fetch response",
			"generation", gen, "current", c.generation)
		return c.snapshotLocked(), nil
	}
	c.events = evs
	return c.snapshotLocked(), nil
}

// Events returns a copy of the cached raw events for the active window.
func (c *Coordinator) Events() []core.CalendarEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Window returns the active view window, if any.
func (c *Coordinator) Window() (core.QueryWindow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window, c.hasWindow
}

// CreateEvent optimistically appends to the cache, then persists. If the
// backend call fails the optimistic entry is rolled back so the cache never
// shows state the store rejected.
func (c *Coordinator) CreateEvent(ctx context.Context, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	c.mu.Lock()
	prior := c.snapshotLocked()
	c.events = append(c.events, ev)
	c.mu.Unlock()

	created, err := c.store.CreateEvent(ctx, ev)
	if err != nil {
		c.rollback(prior)
		return core.CalendarEvent{}, fmt.Errorf("create event: %w", err)
	}

	// Replace the optimistic entry with the authoritative record.
	c.mu.Lock()
	c.events = append(prior, created)
	c.mu.Unlock()

	slog.InfoContext(ctx, "Event created", "id", created.ID, "title", created.Title)
	return created, nil
}

// UpdateEvent optimistically replaces the cached record, then persists,
// rolling back on backend failure.
func (c *Coordinator) UpdateEvent(ctx context.Context, id string, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	c.mu.Lock()
	prior := c.snapshotLocked()
	c.replaceLocked(id, ev)
	c.mu.Unlock()

	updated, err := c.store.UpdateEvent(ctx, id, ev)
	if err != nil {
		c.rollback(prior)
		return core.CalendarEvent{}, fmt.Errorf("update event %s: %w", id, err)
	}

	c.mu.Lock()
	c.replaceLocked(id, updated)
	c.mu.Unlock()

	slog.InfoContext(ctx, "Event updated", "id", id)
	return updated, nil
}

// DeleteEvent optimistically removes the cached record, then deletes from the
// store, rolling back on failure.
func (c *Coordinator) DeleteEvent(ctx context.Context, id string) error {
	c.mu.Lock()
	prior := c.snapshotLocked()
	kept := c.events[:0:0]
	for _, ev := range c.events {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	c.events = kept
	c.mu.Unlock()

	if err := c.store.DeleteEvent(ctx, id); err != nil {
		c.rollback(prior)
		return fmt.Errorf("delete event %s: %w", id, err)
	}

	slog.InfoContext(ctx, "Event deleted", "id", id)
	return nil
}

// WatchChanges consumes the push/invalidation feed until ctx is done. Every
// notification triggers a full refetch of the active window.
func (c *Coordinator) WatchChanges(ctx context.Context, feed events.ChangeFeed) error {
	return feed.Subscribe(ctx, func() {
		if err := c.Refresh(ctx); err != nil {
			slog.WarnContext(ctx, "Refetch after change notification failed", "error", err)
		}
	})
}

func (c *Coordinator) rollback(prior []core.CalendarEvent) {
	c.mu.Lock()
	c.events = prior
	c.mu.Unlock()
}

func (c *Coordinator) replaceLocked(id string, ev core.CalendarEvent) {
	for i := range c.events {
		if c.events[i].ID == id {
			ev.ID = id
			c.events[i] = ev
			return
		}
	}
}

func (c *Coordinator) snapshotLocked() []core.CalendarEvent {
	return append([]core.CalendarEvent(nil), c.events...)
}
