// Package events defines the ports to the external event store. The engine
// consumes these interfaces; persistence lives behind them.
package events

import (
	"context"

	"hearth/internal/core"
)

// Ports for outbound adapters.
type (
	// Store is the CRUD surface of the external event store.
	Store interface {
		// FetchEvents returns the candidate events for a query window:
		// one-off events whose [StartAt, EndAt] overlaps the window, plus
		// every event carrying a recurrence rule regardless of its base
		// start. Date filtering of recurring events happens after expansion,
		// so a rule whose base start predates the window is never missed.
		FetchEvents(ctx context.Context, window core.QueryWindow) ([]core.CalendarEvent, error)

		CreateEvent(ctx context.Context, ev core.CalendarEvent) (core.CalendarEvent, error)
		UpdateEvent(ctx context.Context, id string, ev core.CalendarEvent) (core.CalendarEvent, error)
		DeleteEvent(ctx context.Context, id string) error
	}

	// ChangeFeed is the push/invalidation channel. Notifications carry no
	// payload contract; they only signal that remote data changed and a full
	// refetch is needed.
	ChangeFeed interface {
		// Subscribe blocks until ctx is done, invoking notify for every
		// remote change notification.
		Subscribe(ctx context.Context, notify func()) error
	}

	// PreferencesReader resolves the per-user color-preference record used
	// when an event has no explicit color override.
	PreferencesReader interface {
		ColorPreferences(ctx context.Context, userID string) (core.ColorPreferences, error)
	}

	// PreferencesWriter persists an updated color-preference record.
	PreferencesWriter interface {
		UpdateColorPreferences(ctx context.Context, prefs core.ColorPreferences) (core.ColorPreferences, error)
	}
)
