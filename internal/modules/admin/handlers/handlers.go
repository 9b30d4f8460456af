// Package handlers provides HTTP handlers for the privileged admin API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/sharepool/internal/domain"
	"github.com/aristath/sharepool/internal/modules/admin"
)

// AdminHandlers contains HTTP handlers for the admin API
type AdminHandlers struct {
	service *admin.Service
	log     zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance
func NewAdminHandlers(service *admin.Service, log zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		service: service,
		log:     log.With().Str("handler", "admin").Logger(),
	}
}

// HandleSetPrice updates the platform share price
// PUT /api/admin/price
func (h *AdminHandlers) HandleSetPrice(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-User-ID")

	var req struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "price must be a decimal string")
		return
	}

	if err := h.service.SetSharePrice(callerID, price); err != nil {
		h.writeFailure(w, err, "Set price failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"price": price.String()})
}

// HandleSetAdmin grants or revokes a user's admin capability
// PUT /api/admin/users/{id}/admin
func (h *AdminHandlers) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-User-ID")
	targetID := pathParam(r, "id")

	var req struct {
		IsAdmin bool `json:"is_admin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.SetAdminFlag(callerID, targetID, req.IsAdmin); err != nil {
		h.writeFailure(w, err, "Set admin flag failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       targetID,
		"is_admin": req.IsAdmin,
	})
}

// HandleGetSummary returns platform-wide counters
// GET /api/admin/summary
func (h *AdminHandlers) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-User-ID")

	summary, err := h.service.Summary(callerID)
	if err != nil {
		h.writeFailure(w, err, "Platform summary failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool": map[string]interface{}{
			"total_units":     summary.Pool.TotalUnits,
			"units_sold":      summary.Pool.UnitsSold,
			"available_units": summary.Pool.AvailableUnits,
			"share_price":     summary.Pool.Price.String(),
		},
		"user_count":        summary.UserCount,
		"transaction_count": summary.TransactionCount,
		"total_volume":      summary.TotalVolume.String(),
	})
}

// HandleListUsers returns every profile with holdings aggregates
// GET /api/admin/users
func (h *AdminHandlers) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-User-ID")

	users, err := h.service.ListUsers(callerID)
	if err != nil {
		h.writeFailure(w, err, "User listing failed")
		return
	}

	response := make([]map[string]interface{}, 0, len(users))
	for _, u := range users {
		response = append(response, map[string]interface{}{
			"id":           u.Profile.ID,
			"email":        u.Profile.Email,
			"is_admin":     u.Profile.IsAdmin,
			"created_at":   u.Profile.CreatedAt.Format(time.RFC3339),
			"active_units": u.ActiveUnits,
			"total_spent":  u.TotalSpent.String(),
		})
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetTransactions returns the platform-wide transaction log
// GET /api/admin/transactions
func (h *AdminHandlers) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	callerID := r.Header.Get("X-User-ID")

	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			limit = parsed
		}
	}

	txns, err := h.service.Transactions(callerID, limit)
	if err != nil {
		h.writeFailure(w, err, "Transaction log failed")
		return
	}

	response := make([]map[string]interface{}, 0, len(txns))
	for _, t := range txns {
		entry := map[string]interface{}{
			"id":           t.ID,
			"user_id":      t.UserID,
			"kind":         string(t.Kind),
			"quantity":     t.Quantity,
			"unit_price":   t.UnitPrice.String(),
			"total_amount": t.TotalAmount.String(),
			"created_at":   t.CreatedAt.Format(time.RFC3339),
		}
		if t.LotID != "" {
			entry["lot_id"] = t.LotID
		}
		response = append(response, entry)
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *AdminHandlers) writeFailure(w http.ResponseWriter, err error, logMsg string) {
	rej, ok := domain.AsRejection(err)
	if !ok {
		h.log.Error().Err(err).Msg(logMsg)
		h.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	status := http.StatusUnprocessableEntity
	if rej.Kind == domain.KindPermissionDenied {
		status = http.StatusForbidden
	}
	h.log.Warn().Str("kind", string(rej.Kind)).Msg(logMsg)
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"kind":    string(rej.Kind),
			"message": rej.Message,
		},
	})
}

// writeJSON writes a JSON response
func (h *AdminHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *AdminHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
