package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all admin routes
func (h *AdminHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Put("/price", h.HandleSetPrice)                // Update share price
		r.Get("/summary", h.HandleGetSummary)            // Platform counters
		r.Get("/users", h.HandleListUsers)               // Profiles with holdings
		r.Put("/users/{id}/admin", h.HandleSetAdmin)     // Grant/revoke admin
		r.Get("/transactions", h.HandleGetTransactions)  // Full transaction log
	})
}

func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
