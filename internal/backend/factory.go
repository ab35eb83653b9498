package backend

import (
	"context"
	"fmt"
	"log/slog"

	"hearth/internal/amqp"
	"hearth/internal/clock"
	"hearth/internal/events"
	"hearth/internal/events/google"
	"hearth/internal/events/memory"
	"hearth/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	clk    clock.Clock
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(clk clock.Clock, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		clk:    clk,
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case GoogleBackend:
		return f.createGoogleBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it mutations still work but other processes
	// never hear about them.
	var feed events.ChangeFeed
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change notifications", "error", err)
		} else {
			repo.SetNotifier(amqpClient)
			feed = amqpClient
			f.logger.Info("Initialized AMQP change channel",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", feed != nil)

	return &Result{
		Backend: repo,
		Feed:    feed,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createGoogleBackend(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.NewFromEnv(ctx, f.clk)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Calendar client: %w", err)
	}

	f.logger.Info("Initialized Google Calendar backend", "calendar_id", config.GoogleCalendarID)

	// Google Calendar carries no color-preference records, so those live in
	// a process-local store beside it.
	prefs := memory.New()
	return &Result{
		Backend: composite{
			Store:             cli,
			PreferencesReader: prefs,
			PreferencesWriter: prefs,
		},
		Feed:    nil,
		Cleanup: nil,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	store := memory.New()

	f.logger.Info("Initialized memory backend")

	return &Result{
		Backend: store,
		Feed:    store,
		Cleanup: nil,
	}, nil
}

// composite assembles a Backend out of independent parts.
type composite struct {
	events.Store
	events.PreferencesReader
	events.PreferencesWriter
}
