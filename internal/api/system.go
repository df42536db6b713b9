package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/doc-gateway/internal/domain"
	"github.com/JaimeStill/doc-gateway/pkg/handlers"
	"github.com/JaimeStill/doc-gateway/pkg/routes"
)

// System is the health and statistics surface of the coordinator.
type System interface {
	IsHealthy(ctx context.Context) domain.Health
	SystemStats(ctx context.Context) (*domain.SystemStats, error)
}

// SystemHandler serves health and statistics for the three stores.
type SystemHandler struct {
	sys    System
	logger *slog.Logger
}

// NewSystemHandler creates a SystemHandler over sys.
func NewSystemHandler(sys System, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{sys: sys, logger: logger.With("handler", "system")}
}

func (h *SystemHandler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "",
		Tags:        []string{"System"},
		Description: "Backend health and statistics",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/health", Handler: h.Health},
			{Method: "GET", Pattern: "/health/status/{component}", Handler: h.ComponentHealth},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats},
		},
	}
}

// Health answers 200 when all three stores respond and 503 otherwise.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.sys.IsHealthy(r.Context())
	status := http.StatusOK
	if !health.Overall {
		status = http.StatusServiceUnavailable
	}
	handlers.RespondJSON(w, status, health)
}

// ComponentStatus is the health of one backend.
type ComponentStatus struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
}

// ComponentHealth reports one backend: minio, qdrant or postgres. It answers
// 200 when that store responds, 503 when it does not and 404 for any other
// component name.
func (h *SystemHandler) ComponentHealth(w http.ResponseWriter, r *http.Request) {
	component := r.PathValue("component")

	var pick func(domain.Health) bool
	switch domain.Backend(component) {
	case domain.BackendBlob:
		pick = func(hl domain.Health) bool { return hl.Blob }
	case domain.BackendVector:
		pick = func(hl domain.Health) bool { return hl.Vector }
	case domain.BackendRelational:
		pick = func(hl domain.Health) bool { return hl.Relational }
	default:
		respondError(w, h.logger, domain.NotFound(domain.BackendSystem, "health_status", component))
		return
	}

	healthy := pick(h.sys.IsHealthy(r.Context()))
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	handlers.RespondJSON(w, status, ComponentStatus{Component: component, Healthy: healthy})
}

// Stats returns system statistics. A store that cannot report is named in
// the errors field rather than failing the request.
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.SystemStats(r.Context())
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, stats)
}
