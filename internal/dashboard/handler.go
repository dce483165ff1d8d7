package dashboard

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradewind-oms/tradewind-oms/internal/platform/httpx"
)

// Handler exposes the dashboard statistics API.
type Handler struct {
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the dashboard endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/stats", h.stats)
	r.Get("/comprehensive-stats", h.comprehensiveStats)
	r.Post("/invalidate", h.invalidate)
	return r
}

// invalidate drops cached stats so the next read recomputes. Admin clients
// call this after bulk imports rather than waiting out the TTL.
func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Dashboard cache invalidated", nil)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Dashboard stats", stats)
}

func (h *Handler) comprehensiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ComprehensiveStats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Comprehensive stats", stats)
}
