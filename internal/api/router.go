package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds each dependency probe in /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID)
	r.Use(s.withAccessLog)
	r.Use(s.withRecovery)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)

		r.Route("/devices/{deviceID}", func(r chi.Router) {
			r.Get("/compliance", s.handleGetCompliance)
			r.Get("/history", s.handleGetHistory)
			r.Get("/attempts", s.handleGetAttempts)
			r.Get("/policies/{policyID}/compliance", s.handleGetCurrent)
		})

		r.Get("/records/{recordID}/violations", s.handleGetViolations)
		r.Get("/audit", s.handleListAuditLogs)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	return r
}

// handleHealth probes every registered dependency. Any failure turns the
// response into 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
