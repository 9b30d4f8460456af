package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/shares", func(r chi.Router) {
		r.Get("/", h.HandleGetShares)                 // Active lots + portfolio summary
		r.Post("/buy", h.HandleBuy)                   // Purchase from the pool
		r.Post("/sell", h.HandleSell)                 // Settle a mature lot
		r.Get("/summary", h.HandleGetSummary)         // Portfolio summary alone
		r.Get("/eligibility", h.HandleGetEligibility) // Daily purchase eligibility
		r.Get("/quote", h.HandleGetQuote)             // Price a prospective purchase
	})

	r.Get("/transactions", h.HandleGetTransactions) // Caller's transaction history
}
