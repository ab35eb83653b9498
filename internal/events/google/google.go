// Package google adapts Google Calendar as an event store backend. It lets a
// household point the engine at an existing Google calendar instead of the
// local SQLite store.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"

	gcal "google.golang.org/api/calendar/v3"

	"hearth/internal/clock"
	"hearth/internal/core"
	"hearth/internal/events"
)

// Extended properties carrying fields Google Calendar has no column for.
const (
	propShared    = "hearth-shared"
	propColor     = "hearth-color"
	propCreatedBy = "hearth-created-by"
)

type Client struct {
	svc        *gcal.Service
	calendarID string
	clk        clock.Clock
}

// Ensure interface conformance
var _ events.Store = (*Client)(nil)

// NewFromEnv creates a Calendar client using environment variables.
// Required: GOOGLE_CALENDAR_ID.
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, clk clock.Clock) (*Client, error) {
	calendarID := strings.TrimSpace(os.Getenv("GOOGLE_CALENDAR_ID"))
	if calendarID == "" {
		return nil, errors.New("missing GOOGLE_CALENDAR_ID")
	}

	svc, err := newCalendarService(ctx)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}

	return &Client{svc: svc, calendarID: calendarID, clk: clk}, nil
}

// newCalendarService initializes a Calendar Service using Service Account
// credentials.
func newCalendarService(ctx context.Context) (*gcal.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gcal.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gcal.CalendarScope))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	slog.InfoContext(ctx, "Google Calendar service created")
	return service, nil
}

// FetchEvents implements events.Store. With singleEvents disabled the list
// call returns recurring masters whose series intersects the window, which
// covers the "base start far before the window" case without extra queries.
func (c *Client) FetchEvents(ctx context.Context, window core.QueryWindow) ([]core.CalendarEvent, error) {
	var out []core.CalendarEvent
	pageToken := ""

	for {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(window.StartAt.Format(time.RFC3339)).
			TimeMax(window.EndAt.Format(time.RFC3339)).
			SingleEvents(false).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list calendar events: %w", err)
		}

		for _, item := range res.Items {
			ev, err := c.fromGoogle(item)
			if err != nil {
				slog.WarnContext(ctx, "Skipping unmappable calendar event",
					"google_id", item.Id, "error", err)
				continue
			}
			out = append(out, ev)
		}

		pageToken = res.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return out, nil
}

func (c *Client) CreateEvent(ctx context.Context, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	created, err := c.svc.Events.Insert(c.calendarID, c.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("insert calendar event: %w", err)
	}
	return c.fromGoogle(created)
}

func (c *Client) UpdateEvent(ctx context.Context, id string, ev core.CalendarEvent) (core.CalendarEvent, error) {
	if err := ev.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}

	updated, err := c.svc.Events.Update(c.calendarID, id, c.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("update calendar event: %w", err)
	}
	return c.fromGoogle(updated)
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	if err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

func (c *Client) toGoogle(ev core.CalendarEvent) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				propShared:    fmt.Sprintf("%t", ev.IsShared),
				propColor:     ev.ColorOverride,
				propCreatedBy: ev.CreatedBy,
			},
		},
	}

	if ev.IsAllDay {
		out.Start = &gcal.EventDateTime{Date: c.clk.DateString(ev.StartAt)}
		out.End = &gcal.EventDateTime{Date: c.clk.DateString(ev.EndAt)}
	} else {
		out.Start = &gcal.EventDateTime{DateTime: c.clk.DateTimeString(ev.StartAt)}
		out.End = &gcal.EventDateTime{DateTime: c.clk.DateTimeString(ev.EndAt)}
	}

	if ev.RecurrenceRule != "" {
		out.Recurrence = []string{"RRULE:" + ev.RecurrenceRule}
	}

	if len(ev.Reminders) > 0 {
		overrides := make([]*gcal.EventReminder, 0, len(ev.Reminders))
		for _, rem := range ev.Reminders {
			overrides = append(overrides, &gcal.EventReminder{
				Minutes: int64(rem.MinutesBefore),
				Method:  reminderMethodToGoogle(rem.Method),
			})
		}
		out.Reminders = &gcal.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		}
	}

	return out
}

func (c *Client) fromGoogle(item *gcal.Event) (core.CalendarEvent, error) {
	ev := core.CalendarEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}

	start, allDay, err := parseEventTime(c.clk, item.Start)
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("event start: %w", err)
	}
	end, _, err := parseEventTime(c.clk, item.End)
	if err != nil {
		return core.CalendarEvent{}, fmt.Errorf("event end: %w", err)
	}
	ev.StartAt = start
	ev.EndAt = end
	ev.IsAllDay = allDay

	for _, rec := range item.Recurrence {
		if rule, found := strings.CutPrefix(rec, "RRULE:"); found {
			ev.RecurrenceRule = rule
			break
		}
	}

	if item.ExtendedProperties != nil && item.ExtendedProperties.Private != nil {
		props := item.ExtendedProperties.Private
		ev.IsShared = props[propShared] == "true"
		ev.ColorOverride = props[propColor]
		ev.CreatedBy = props[propCreatedBy]
	}

	if item.Reminders != nil {
		for _, o := range item.Reminders.Overrides {
			ev.Reminders = append(ev.Reminders, core.Reminder{
				MinutesBefore: int(o.Minutes),
				Method:        reminderMethodFromGoogle(o.Method),
			})
		}
	}

	if item.Created != "" {
		if t, err := time.Parse(time.RFC3339, item.Created); err == nil {
			ev.CreatedAt = t
		}
	}
	if item.Updated != "" {
		if t, err := time.Parse(time.RFC3339, item.Updated); err == nil {
			ev.UpdatedAt = t
		}
	}

	return ev, nil
}

func parseEventTime(clk clock.Clock, edt *gcal.EventDateTime) (time.Time, bool, error) {
	if edt == nil {
		return time.Time{}, false, errors.New("missing event time")
	}
	if edt.Date != "" {
		t, err := clk.ParseDate(edt.Date)
		return t, true, err
	}
	t, err := time.Parse(time.RFC3339, edt.DateTime)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse datetime %q: %w", edt.DateTime, err)
	}
	return t.In(clk.Location()), false, nil
}

func reminderMethodToGoogle(m core.ReminderMethod) string {
	switch m {
	case core.ReminderEmail:
		return "email"
	default:
		// Google Calendar has no in-app channel distinct from popup.
		return "popup"
	}
}

func reminderMethodFromGoogle(method string) core.ReminderMethod {
	if method == "email" {
		return core.ReminderEmail
	}
	return core.ReminderPush
}
