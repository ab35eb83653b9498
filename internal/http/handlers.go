package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hearth/internal/calendar"
	"hearth/internal/core"
)

// PreferenceStore is the color-preference surface the API exposes.
type PreferenceStore interface {
	ColorPreferences(ctx context.Context, userID string) (core.ColorPreferences, error)
	UpdateColorPreferences(ctx context.Context, prefs core.ColorPreferences) (core.ColorPreferences, error)
}

func (s *Server) handleMonthGrid(w http.ResponseWriter, r *http.Request) {
	opts := viewOptions(r)
	month := r.URL.Query().Get("month")

	grid, err := s.views.MonthGrid(r.Context(), month, opts)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month grid failed", "error", err, "month", month)
		writeError(w, http.StatusBadGateway, "failed to load calendar data")
		return
	}

	writeJSON(w, http.StatusOK, s.gridResponse(r.Context(), grid, r.URL.Query().Get("user")))
}

func (s *Server) handleWeekGrid(w http.ResponseWriter, r *http.Request) {
	opts := viewOptions(r)

	anchor, err := s.parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	grid, err := s.views.WeekGrid(r.Context(), anchor, opts)
	if err != nil {
		slog.ErrorContext(r.Context(), "Week grid failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load calendar data")
		return
	}

	writeJSON(w, http.StatusOK, s.gridResponse(r.Context(), grid, r.URL.Query().Get("user")))
}

func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	start, err := s.parseDateParam(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
		return
	}
	end, err := s.parseDateParam(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date, want YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date before start date")
		return
	}

	window := core.QueryWindow{StartAt: start, EndAt: endOfDay(end)}
	occs, err := s.views.Occurrences(r.Context(), window, viewOptions(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Occurrence listing failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load calendar data")
		return
	}

	user := r.URL.Query().Get("user")
	out := make([]occurrenceResponse, 0, len(occs))
	for _, occ := range occs {
		out = append(out, s.occurrenceResponse(r.Context(), occ, user))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}

	created, err := s.coord.CreateEvent(r.Context(), ev)
	if err != nil {
		s.writeEventError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, s.eventResponse(r.Context(), created, ""))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ev, ok := s.decodeEvent(w, r)
	if !ok {
		return
	}

	updated, err := s.coord.UpdateEvent(r.Context(), id, ev)
	if err != nil {
		s.writeEventError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.eventResponse(r.Context(), updated, ""))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.coord.DeleteEvent(r.Context(), id); err != nil {
		s.writeEventError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rule string `json:"rule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := calendar.ValidateRule(s.clk, req.Rule); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")

	prefs, err := s.prefs.ColorPreferences(r.Context(), user)
	if err != nil {
		slog.ErrorContext(r.Context(), "Preference lookup failed", "error", err, "user", user)
		writeError(w, http.StatusBadGateway, "failed to load preferences")
		return
	}

	writeJSON(w, http.StatusOK, preferencesResponse(prefs))
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")

	var req struct {
		PersonalColor string `json:"personal_color"`
		SharedColor   string `json:"shared_color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	prefs := core.ColorPreferences{
		UserID:        user,
		PersonalColor: sanitizeInput(req.PersonalColor),
		SharedColor:   sanitizeInput(req.SharedColor),
	}
	if err := prefs.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := s.prefs.UpdateColorPreferences(r.Context(), prefs)
	if err != nil {
		slog.ErrorContext(r.Context(), "Preference update failed", "error", err, "user", user)
		writeError(w, http.StatusBadGateway, "failed to save preferences")
		return
	}

	s.views.InvalidatePreferences(user)
	writeJSON(w, http.StatusOK, preferencesResponse(saved))
}

func (s *Server) writeEventError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.ErrorContext(r.Context(), "Event operation failed", "error", err)
		writeError(w, http.StatusBadGateway, "event store operation failed")
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrEmptyTitle,
		core.ErrTitleTooLong,
		core.ErrEndBeforeStart,
		core.ErrZeroStart,
		core.ErrNegativeLeadTime,
		core.ErrUnknownReminder,
		core.ErrInvalidRecurrence,
		core.ErrInvalidColor,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
