package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"hearth/internal/core"
)

// Timestamps are persisted as local ISO-8601 with an explicit offset, never a
// bare UTC Z, so the calendar day survives round-trips regardless of the
// host's zone.
const timeLayout = "2006-01-02T15:04:05-07:00"

// Notifier publishes change notifications after successful mutations.
type Notifier interface {
	PublishChange(ctx context.Context, eventID, op string) error
}

// SQLiteRepository is the SQLite-backed event store.
type SQLiteRepository struct {
	db       *sql.DB
	notifier Notifier
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// SetNotifier attaches a change publisher. Mutations succeed even when
// publishing fails; subscribers just miss one invalidation.
func (r *SQLiteRepository) SetNotifier(n Notifier) {
	r.notifier = n
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// FetchEvents implements events.Store. Recurring events are returned
// unconditionally; one-off events are filtered by window overlap in SQL.
func (r *SQLiteRepository) FetchEvents(ctx context.Context, window core.QueryWindow) ([]core.CalendarEvent, error) {
	const query = `
		SELECT id, title, description, location, start_at, end_at,
		       is_all_day, is_shared, color_override, recurrence_rule,
		       created_by, created_at, updated_at
		FROM calendar_events
		WHERE recurrence_rule != ''
		   OR (datetime(start_at) <= datetime(?) AND datetime(end_at) >= datetime(?))
		ORDER BY datetime(start_at)`

	rows, err := r.db.QueryContext(ctx, query,
		window.EndAt.Format(timeLayout),
		window.StartAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []core.CalendarEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	for i := range events {
		reminders, err := r.loadReminders(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Reminders = reminders
	}

	return events, nil
}

func (r *SQLiteRepository) CreateEvent(ctx context.Context, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now()
	ev.CreatedAt = now
	ev.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO calendar_events
			(id, title, description, location, start_at, end_at,
			 is_all_day, is_shared, color_override, recurrence_rule,
			 created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insert,
		ev.ID, ev.Title, ev.Description, ev.Location,
		ev.StartAt.Format(timeLayout), ev.EndAt.Format(timeLayout),
		boolToInt(ev.IsAllDay), boolToInt(ev.IsShared),
		ev.ColorOverride, ev.RecurrenceRule,
		ev.CreatedBy, ev.CreatedAt.Format(timeLayout), ev.UpdatedAt.Format(timeLayout))
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("insert event: %w", err)
	}

	if err := saveReminders(ctx, tx, ev.ID, ev.Reminders); err != nil {
		return core.CalendarEvent{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.CalendarEvent{}, fmt.Errorf("commit event: %w", err)
	}

	slog.InfoContext(ctx, "Calendar event saved", "id", ev.ID, "title", ev.Title)
	r.publish(ctx, ev.ID, "create")
	return ev, nil
}

func (r *SQLiteRepository) UpdateEvent(ctx context.Context, id string, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	existing, err := r.getEvent(ctx, id)
	if err != nil {
		return core.CalendarEvent{}, err
	}

	ev.ID = id
	ev.CreatedBy = existing.CreatedBy
	ev.CreatedAt = existing.CreatedAt
	ev.UpdatedAt = time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const update = `
		UPDATE calendar_events
		SET title = ?, description = ?, location = ?, start_at = ?, end_at = ?,
		    is_all_day = ?, is_shared = ?, color_override = ?, recurrence_rule = ?,
		    updated_at = ?
		WHERE id = ?`

	_, err = tx.ExecContext(ctx, update,
		ev.Title, ev.Description, ev.Location,
		ev.StartAt.Format(timeLayout), ev.EndAt.Format(timeLayout),
		boolToInt(ev.IsAllDay), boolToInt(ev.IsShared),
		ev.ColorOverride, ev.RecurrenceRule,
		ev.UpdatedAt.Format(timeLayout), id)
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("update event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_reminders WHERE event_id = ?`, id); err != nil {
		return core.CalendarEvent{}, fmt.Errorf("clear reminders: %w", err)
	}
	if err := saveReminders(ctx, tx, id, ev.Reminders); err != nil {
		return core.CalendarEvent{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.CalendarEvent{}, fmt.Errorf("commit event update: %w", err)
	}

	slog.InfoContext(ctx, "Calendar event updated", "id", id)
	r.publish(ctx, id, "update")
	return ev, nil
}

func (r *SQLiteRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrEventNotFound
	}

	slog.InfoContext(ctx, "Calendar event deleted", "id", id)
	r.publish(ctx, id, "delete")
	return nil
}

// ColorPreferences implements events.PreferencesReader.
func (r *SQLiteRepository) ColorPreferences(ctx context.Context, userID string) (core.ColorPreferences, error) {
	prefs := core.ColorPreferences{UserID: userID}

	row := r.db.QueryRowContext(ctx,
		`SELECT personal_color, shared_color FROM color_preferences WHERE user_id = ?`, userID)
	err := row.Scan(&prefs.PersonalColor, &prefs.SharedColor)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return core.ColorPreferences{}, fmt.Errorf("query color preferences: %w", err)
	}
	return prefs, nil
}

func (r *SQLiteRepository) UpdateColorPreferences(ctx context.Context, prefs core.ColorPreferences) (core.ColorPreferences, error) {
	if err := prefs.Validate(); err != nil {
		return core.ColorPreferences{}, err
	}

	const upsert = `
		INSERT INTO color_preferences (user_id, personal_color, shared_color)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			personal_color = excluded.personal_color,
			shared_color = excluded.shared_color`

	if _, err := r.db.ExecContext(ctx, upsert, prefs.UserID, prefs.PersonalColor, prefs.SharedColor); err != nil {
		return core.ColorPreferences{}, fmt.Errorf("upsert color preferences: %w", err)
	}
	return prefs, nil
}

func (r *SQLiteRepository) getEvent(ctx context.Context, id string) (core.CalendarEvent, error) {
	const query = `
		SELECT id, title, description, location, start_at, end_at,
		       is_all_day, is_shared, color_override, recurrence_rule,
		       created_by, created_at, updated_at
		FROM calendar_events WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CalendarEvent{}, core.ErrEventNotFound
	}
	if err != nil {
		return core.CalendarEvent{}, err
	}
	return ev, nil
}

func (r *SQLiteRepository) loadReminders(ctx context.Context, eventID string) ([]core.Reminder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT minutes_before, method FROM event_reminders WHERE event_id = ? ORDER BY position`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []core.Reminder
	for rows.Next() {
		var rem core.Reminder
		var method string
		if err := rows.Scan(&rem.MinutesBefore, &method); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		rem.Method = core.ReminderMethod(method)
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

func (r *SQLiteRepository) publish(ctx context.Context, eventID, op string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.PublishChange(ctx, eventID, op); err != nil {
		slog.WarnContext(ctx, "Failed to publish change notification",
			"event_id", eventID, "op", op, "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (core.CalendarEvent, error) {
	var (
		ev                   core.CalendarEvent
		startAt, endAt       string
		createdAt, updatedAt string
		isAllDay, isShared   int
	)

	err := row.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location,
		&startAt, &endAt, &isAllDay, &isShared,
		&ev.ColorOverride, &ev.RecurrenceRule,
		&ev.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return core.CalendarEvent{}, err
	}

	ev.IsAllDay = isAllDay != 0
	ev.IsShared = isShared != 0

	for _, field := range []struct {
		dst *time.Time
		src string
	}{
		{&ev.StartAt, startAt},
		{&ev.EndAt, endAt},
		{&ev.CreatedAt, createdAt},
		{&ev.UpdatedAt, updatedAt},
	} {
		t, err := time.Parse(timeLayout, field.src)
		if err != nil {
			return core.CalendarEvent{}, fmt.Errorf("parse stored timestamp %q: %w", field.src, err)
		}
		*field.dst = t
	}

	return ev, nil
}

func saveReminders(ctx context.Context, tx *sql.Tx, eventID string, reminders []core.Reminder) error {
	for i, rem := range reminders {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO event_reminders (event_id, position, minutes_before, method) VALUES (?, ?, ?, ?)`,
			eventID, i, rem.MinutesBefore, string(rem.Method))
		if err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
