// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const probeTimeout = 3 * time.Second

type Checker interface {
	Ping(ctx context.Context) error
}

// Dependency is a readiness probe target. A failing optional dependency
// reports "degraded" but keeps the instance in rotation.
type Dependency struct {
	Name     string
	Checker  Checker
	Optional bool
}

type Handler struct {
	deps     []Dependency
	ready    atomic.Bool
	draining atomic.Bool
}

func NewHandler(deps ...Dependency) *Handler {
	h := &Handler{deps: deps}
	h.ready.Store(true)
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

// SetReady toggles readiness without touching liveness.
func (h *Handler) SetReady(ready bool) { h.ready.Store(ready) }

// SetShutdown fails both probes while the server drains.
func (h *Handler) SetShutdown(draining bool) { h.draining.Store(draining) }

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "shutting_down"})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	switch {
	case h.draining.Load():
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "shutting_down"})
		return
	case !h.ready.Load():
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "not_ready"})
		return
	}

	checks := h.probeAll(r.Context())
	status, code := verdict(checks)
	writeJSON(w, code, ReadinessResponse{Status: status, Checks: checks})
}

func (h *Handler) probeAll(ctx context.Context) []HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	checks := make([]HealthCheck, len(h.deps))
	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Go(func() { checks[i] = probe(ctx, dep) })
	}
	wg.Wait()
	return checks
}

func probe(ctx context.Context, dep Dependency) HealthCheck {
	c := HealthCheck{Name: dep.Name, Optional: dep.Optional}
	if dep.Checker == nil {
		c.Message = "not configured"
		return c
	}

	start := time.Now()
	err := dep.Checker.Ping(ctx)
	c.Latency = time.Since(start).Round(time.Microsecond).String()
	if err != nil {
		c.Message = "ping failed"
		return c
	}

	c.Healthy = true
	return c
}

// verdict is "unavailable" when a required dependency failed, "degraded"
// when only optional ones did.
func verdict(checks []HealthCheck) (string, int) {
	status := "ok"
	for _, c := range checks {
		switch {
		case c.Healthy:
		case !c.Optional:
			return "unavailable", http.StatusServiceUnavailable
		default:
			status = "degraded"
		}
	}
	return status, http.StatusOK
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(body)
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}
