package backend

import (
	"context"

	"hearth/internal/events"
)

// Backend bundles the event store with the color-preference surface every
// data backend must provide.
type Backend interface {
	events.Store
	events.PreferencesReader
	events.PreferencesWriter
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the backend instance plus the optional change feed and
// cleanup function. Feed is nil when the backend has no push channel.
type Result struct {
	Backend Backend
	Feed    events.ChangeFeed
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type Type

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Calendar specific
	GoogleCalendarID string
}

// Type represents the kind of data backend
type Type string

const (
	SQLiteBackend Type = "sqlite"
	GoogleBackend Type = "google"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, GoogleBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
