// Package http exposes the bus's operational surface: Prometheus metrics,
// health, and per-tenant breaker/throttle/audit inspection.
//
// This is an internal ops endpoint, not a public API; business modules talk
// to the bus in process, never over HTTP.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/ports"
)

// BreakerInspector reads per-tenant circuit breaker state.
type BreakerInspector interface {
	State(ctx context.Context, organizationID string) (*domain.BreakerState, error)
}

// ThrottleInspector reads per-tenant throttle window state.
type ThrottleInspector interface {
	Window(ctx context.Context, organizationID string) (domain.ThrottleWindow, error)
}

// SubscriptionCounter reports registered subscribers per type.
type SubscriptionCounter interface {
	Counts() map[domain.SignalType]int
}

// Server bundles the components the ops endpoint inspects.
type Server struct {
	Breaker       BreakerInspector
	Throttler     ThrottleInspector
	Audit         ports.AuditStore
	Subscriptions SubscriptionCounter

	// Gatherer serves /metrics. Defaults to the process-wide registry.
	Gatherer prometheus.Gatherer
}

// NewHandler builds the chi router for the ops endpoint.
func NewHandler(s Server) http.Handler {
	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Subscriptions.Counts())
	})

	r.Route("/organizations/{orgID}", func(r chi.Router) {
		r.Get("/breaker", s.handleBreaker)
		r.Get("/throttle", s.handleThrottle)
		r.Get("/audit", s.handleAudit)
	})

	return r
}

func (s Server) handleBreaker(w http.ResponseWriter, r *http.Request) {
	state, err := s.Breaker.State(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		http.Error(w, "failed to load breaker state", http.StatusInternalServerError)
		return
	}
	writeJSON(w, state)
}

func (s Server) handleThrottle(w http.ResponseWriter, r *http.Request) {
	win, err := s.Throttler.Window(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		http.Error(w, "failed to load throttle window", http.StatusInternalServerError)
		return
	}
	writeJSON(w, win)
}

func (s Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.Audit.ListRecent(r.Context(), chi.URLParam(r, "orgID"), limit)
	if err != nil {
		http.Error(w, "failed to list audit entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
