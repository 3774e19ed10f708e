package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/tipjar/pkg/metrics"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider reports runtime figures for GET /stats.
type StatsProvider interface {
	GetStats(ctx context.Context) map[string]any
}

// HealthHandler serves the metrics exposition while storage answers pings.
type HealthHandler struct {
	pinger   Pinger
	exporter http.Handler
}

// NewHealthHandler returns a handler over the service registry. A nil pinger
// is always healthy.
func NewHealthHandler(pinger Pinger) *HealthHandler {
	return &HealthHandler{
		pinger:   pinger,
		exporter: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind("api.healthz", ErrUnavailable, err))
			return
		}
	}
	h.exporter.ServeHTTP(w, r)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{}
	if s.deps.Stats != nil {
		stats = s.deps.Stats.GetStats(r.Context())
	}
	writeJSON(w, http.StatusOK, stats)
}
