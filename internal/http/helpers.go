package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hearth/internal/calendar"
	"hearth/internal/core"
	"hearth/internal/services"
)

type eventRequest struct {
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Location       string            `json:"location"`
	StartAt        string            `json:"start_at"`
	EndAt          string            `json:"end_at"`
	IsAllDay       bool              `json:"is_all_day"`
	IsShared       bool              `json:"is_shared"`
	ColorOverride  string            `json:"color_override"`
	RecurrenceRule string            `json:"recurrence_rule"`
	Reminders      []reminderPayload `json:"reminders"`
	CreatedBy      string            `json:"created_by"`
}

type reminderPayload struct {
	MinutesBefore int    `json:"minutes_before"`
	Method        string `json:"method"`
}

type eventResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	Location       string            `json:"location,omitempty"`
	StartAt        string            `json:"start_at"`
	EndAt          string            `json:"end_at"`
	IsAllDay       bool              `json:"is_all_day"`
	IsShared       bool              `json:"is_shared"`
	Color          string            `json:"color"`
	RecurrenceRule string            `json:"recurrence_rule,omitempty"`
	Reminders      []reminderPayload `json:"reminders,omitempty"`
	CreatedBy      string            `json:"created_by,omitempty"`
}

type occurrenceResponse struct {
	Event   eventResponse `json:"event"`
	StartAt string        `json:"start_at"`
	EndAt   string        `json:"end_at"`
}

type positionResponse struct {
	Event    eventResponse `json:"event"`
	StartAt  string        `json:"start_at"`
	EndAt    string        `json:"end_at"`
	DayIndex int           `json:"day_index"`
	Span     int           `json:"span"`
	Row      int           `json:"row"`
}

type weekResponse struct {
	Days      []string           `json:"days"`
	Rows      int                `json:"rows"`
	Positions []positionResponse `json:"positions"`
}

type gridResponse struct {
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
	Weeks       []weekResponse `json:"weeks"`
}

// decodeEvent parses and validates the JSON event payload. A false return
// means the response has already been written.
func (s *Server) decodeEvent(w http.ResponseWriter, r *http.Request) (core.CalendarEvent, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return core.CalendarEvent{}, false
	}

	startAt, err := s.parseTimestamp(req.StartAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start_at: %v", err))
		return core.CalendarEvent{}, false
	}
	endAt, err := s.parseTimestamp(req.EndAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end_at: %v", err))
		return core.CalendarEvent{}, false
	}

	if req.RecurrenceRule != "" {
		if err := calendar.ValidateRule(s.clk, req.RecurrenceRule); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid recurrence_rule: %v", err))
			return core.CalendarEvent{}, false
		}
	}

	ev := core.CalendarEvent{
		Title:          sanitizeInput(req.Title),
		Description:    sanitizeInput(req.Description),
		Location:       sanitizeInput(req.Location),
		StartAt:        startAt,
		EndAt:          endAt,
		IsAllDay:       req.IsAllDay,
		IsShared:       req.IsShared,
		ColorOverride:  sanitizeInput(req.ColorOverride),
		RecurrenceRule: strings.TrimSpace(req.RecurrenceRule),
		CreatedBy:      sanitizeInput(req.CreatedBy),
	}
	for _, rem := range req.Reminders {
		ev.Reminders = append(ev.Reminders, core.Reminder{
			MinutesBefore: rem.MinutesBefore,
			Method:        core.ReminderMethod(rem.Method),
		})
	}

	if err := ev.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return core.CalendarEvent{}, false
	}

	return ev, true
}

// parseTimestamp accepts RFC3339 or a bare date, both resolved into the
// calendar's zone.
func (s *Server) parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(s.clk.Location()), nil
	}
	return s.clk.ParseDate(v)
}

func (s *Server) parseDateParam(r *http.Request, name string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return s.clk.StartOfDay(time.Now().In(s.clk.Location())), nil
	}
	return s.clk.ParseDate(v)
}

func viewOptions(r *http.Request) services.ViewOptions {
	shared := r.URL.Query().Get("shared")
	return services.ViewOptions{SharedOnly: shared == "1" || shared == "true"}
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func (s *Server) eventResponse(ctx context.Context, ev core.CalendarEvent, user string) eventResponse {
	out := eventResponse{
		ID:             ev.ID,
		Title:          ev.Title,
		Description:    ev.Description,
		Location:       ev.Location,
		StartAt:        s.clk.DateTimeString(ev.StartAt),
		EndAt:          s.clk.DateTimeString(ev.EndAt),
		IsAllDay:       ev.IsAllDay,
		IsShared:       ev.IsShared,
		Color:          s.views.EventColor(ctx, ev, user),
		RecurrenceRule: ev.RecurrenceRule,
		CreatedBy:      ev.CreatedBy,
	}
	for _, rem := range ev.Reminders {
		out.Reminders = append(out.Reminders, reminderPayload{
			MinutesBefore: rem.MinutesBefore,
			Method:        string(rem.Method),
		})
	}
	return out
}

func (s *Server) occurrenceResponse(ctx context.Context, occ core.Occurrence, user string) occurrenceResponse {
	return occurrenceResponse{
		Event:   s.eventResponse(ctx, occ.Event, user),
		StartAt: s.clk.DateTimeString(occ.StartAt),
		EndAt:   s.clk.DateTimeString(occ.EndAt),
	}
}

func (s *Server) gridResponse(ctx context.Context, grid calendar.Grid, user string) gridResponse {
	out := gridResponse{
		WindowStart: s.clk.DateString(grid.Window.StartAt),
		WindowEnd:   s.clk.DateString(grid.Window.EndAt),
	}
	for _, week := range grid.Weeks {
		wr := weekResponse{Rows: week.Rows}
		for _, day := range week.Days {
			wr.Days = append(wr.Days, s.clk.DateString(day))
		}
		for _, pos := range week.Positions {
			wr.Positions = append(wr.Positions, positionResponse{
				Event:    s.eventResponse(ctx, pos.Event, user),
				StartAt:  s.clk.DateTimeString(pos.StartAt),
				EndAt:    s.clk.DateTimeString(pos.EndAt),
				DayIndex: pos.DayIndex,
				Span:     pos.Span,
				Row:      pos.Row,
			})
		}
		out.Weeks = append(out.Weeks, wr)
	}
	return out
}

func preferencesResponse(prefs core.ColorPreferences) map[string]string {
	return map[string]string{
		"user_id":        prefs.UserID,
		"personal_color": prefs.PersonalColor,
		"shared_color":   prefs.SharedColor,
	}
}
