package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"hearth/internal/clock"
	applog "hearth/internal/log"
	"hearth/internal/middleware/ratelimit"
	"hearth/internal/middleware/security"
	"hearth/internal/middleware/trace"
	"hearth/internal/services"
)

// Server exposes the calendar engine as a JSON API.
type Server struct {
	http.Server

	clk   clock.Clock
	views *services.ViewService
	coord *services.Coordinator
	prefs PreferenceStore

	limiter  *ratelimit.Limiter
	detector *security.Detector
}

// NewServer wires the middleware chain and routes.
func NewServer(addr string, clk clock.Clock, views *services.ViewService, coord *services.Coordinator, prefs PreferenceStore) *Server {
	s := &Server{
		clk:      clk,
		views:    views,
		coord:    coord,
		prefs:    prefs,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/calendar/month", s.handleMonthGrid)
	mux.HandleFunc("GET /api/calendar/week", s.handleWeekGrid)
	mux.HandleFunc("GET /api/calendar/occurrences", s.handleOccurrences)

	mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)

	mux.HandleFunc("POST /api/rules/validate", s.handleValidateRule)

	mux.HandleFunc("GET /api/preferences/{user}", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/preferences/{user}", s.handlePutPreferences)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP)
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

	handler := applog.Middleware(applog.New(applog.DefaultConfig()))(
		tracer.Middleware(limit(headers.Middleware(mux))))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Shutdown stops background middleware goroutines and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r),
		"method", r.Method,
		"path", r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
