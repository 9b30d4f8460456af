// Package handlers provides HTTP handlers for public platform pool state.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/sharepool/internal/modules/pool"
)

// PoolHandlers contains HTTP handlers for pool status
type PoolHandlers struct {
	repo *pool.Repository
	log  zerolog.Logger
}

// NewPoolHandlers creates a new pool handlers instance
func NewPoolHandlers(repo *pool.Repository, log zerolog.Logger) *PoolHandlers {
	return &PoolHandlers{
		repo: repo,
		log:  log.With().Str("handler", "pool").Logger(),
	}
}

// HandleGetStatus returns the pool's supply counters and current price
// GET /api/platform/status
func (h *PoolHandlers) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.repo.Status()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get pool status")
		http.Error(w, "Failed to get pool status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"total_units":     status.TotalUnits,
		"units_sold":      status.UnitsSold,
		"available_units": status.AvailableUnits,
		"share_price":     status.Price.String(),
	})
}

// RegisterRoutes registers all pool routes
func (h *PoolHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/platform", func(r chi.Router) {
		r.Get("/status", h.HandleGetStatus)
	})
}
