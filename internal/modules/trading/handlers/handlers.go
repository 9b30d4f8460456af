// Package handlers provides HTTP handlers for the share purchase and sell API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sharepool/internal/domain"
	"github.com/aristath/sharepool/internal/modules/ledger"
	"github.com/aristath/sharepool/internal/modules/pricing"
	"github.com/aristath/sharepool/internal/modules/trading"
)

// TradingHandlers contains HTTP handlers for the trading API
type TradingHandlers struct {
	service *trading.Service
	log     zerolog.Logger
}

// NewTradingHandlers creates a new trading handlers instance
func NewTradingHandlers(service *trading.Service, log zerolog.Logger) *TradingHandlers {
	return &TradingHandlers{
		service: service,
		log:     log.With().Str("handler", "trading").Logger(),
	}
}

// HandleBuy purchases units from the pool for the calling user
// POST /api/shares/buy
func (h *TradingHandlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Buy(userID, req.Quantity)
	if err != nil {
		h.writeFailure(w, err, "Buy failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"lot":         lotResponse(result.Lot),
		"transaction": transactionResponse(result.Transaction),
	})
}

// HandleSell settles units of a mature lot back to the platform
// POST /api/shares/sell
func (h *TradingHandlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	var req struct {
		LotID    string `json:"lot_id"`
		Quantity int64  `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LotID == "" {
		h.writeError(w, http.StatusBadRequest, "lot_id is required")
		return
	}

	settlement, err := h.service.Sell(userID, req.LotID, req.Quantity)
	if err != nil {
		h.writeFailure(w, err, "Sell failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"payout":      settlement.Payout.String(),
		"lot_retired": settlement.LotRetired,
		"transaction": transactionResponse(settlement.Transaction),
	})
}

// HandleGetShares returns the caller's active lots with a portfolio summary
// GET /api/shares
func (h *TradingHandlers) HandleGetShares(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	lots, summary, err := h.service.Portfolio(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load portfolio")
		h.writeError(w, http.StatusInternalServerError, "Failed to load portfolio")
		return
	}

	now := h.service.Now()
	lotList := make([]map[string]interface{}, 0, len(lots))
	for _, lot := range lots {
		entry := lotResponse(lot)
		entry["is_mature"] = lot.IsMature(now)
		entry["expected_profit"] = lot.ExpectedProfit().String()
		lotList = append(lotList, entry)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"lots":    lotList,
		"summary": summaryResponse(summary),
	})
}

// HandleGetSummary returns the caller's portfolio summary alone
// GET /api/shares/summary
func (h *TradingHandlers) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	_, summary, err := h.service.Portfolio(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load portfolio summary")
		h.writeError(w, http.StatusInternalServerError, "Failed to load portfolio summary")
		return
	}

	h.writeJSON(w, http.StatusOK, summaryResponse(summary))
}

// HandleGetEligibility reports whether the caller may buy right now
// GET /api/shares/eligibility
func (h *TradingHandlers) HandleGetEligibility(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	elig, err := h.service.Eligibility(userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to check eligibility")
		h.writeError(w, http.StatusInternalServerError, "Failed to check eligibility")
		return
	}

	response := map[string]interface{}{
		"can_buy_today": elig.CanBuyToday,
		"max_quantity":  elig.MaxQuantity,
	}
	if elig.NextEligibleAt != nil {
		response["next_eligible_at"] = elig.NextEligibleAt.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetQuote prices a prospective purchase at the current pool price
// GET /api/shares/quote?quantity=N
func (h *TradingHandlers) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "quantity must be an integer")
		return
	}

	quote, err := h.service.Quote(quantity)
	if err != nil {
		h.writeFailure(w, err, "Quote failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"quantity":     quantity,
		"total_price":  quote.TotalPrice.String(),
		"future_value": quote.FutureValue.String(),
		"profit":       quote.Profit.String(),
	})
}

// HandleGetTransactions returns the caller's transaction history
// GET /api/transactions
func (h *TradingHandlers) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	limit := 50
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil {
			limit = parsed
		}
	}

	txns, err := h.service.History(userID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to get transaction history")
		h.writeError(w, http.StatusInternalServerError, "Failed to get transaction history")
		return
	}

	response := make([]map[string]interface{}, 0, len(txns))
	for _, t := range txns {
		response = append(response, transactionResponse(t))
	}

	h.writeJSON(w, http.StatusOK, response)
}

// callerID extracts the authenticated user from the request.
// Authentication itself is terminated upstream; the engine trusts the header.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func lotResponse(lot ledger.Lot) map[string]interface{} {
	return map[string]interface{}{
		"id":             lot.ID,
		"quantity":       lot.Quantity,
		"unit_price":     lot.UnitPrice.String(),
		"purchase_total": lot.PurchaseTotal.String(),
		"purchased_at":   lot.PurchasedAt.Format(time.RFC3339),
		"matures_at":     lot.MaturesAt.Format(time.RFC3339),
		"sold":           lot.Sold,
	}
}

func summaryResponse(summary pricing.Summary) map[string]interface{} {
	return map[string]interface{}{
		"total_quantity":   summary.TotalQuantity,
		"total_cost":       summary.TotalCost.String(),
		"mature_quantity":  summary.MatureQuantity,
		"mature_value":     summary.MatureValue.String(),
		"pending_quantity": summary.PendingQuantity,
		"pending_value":    summary.PendingValue.String(),
	}
}

func transactionResponse(t ledger.Transaction) map[string]interface{} {
	resp := map[string]interface{}{
		"id":           t.ID,
		"kind":         string(t.Kind),
		"quantity":     t.Quantity,
		"unit_price":   t.UnitPrice.String(),
		"total_amount": t.TotalAmount.String(),
		"created_at":   t.CreatedAt.Format(time.RFC3339),
	}
	if t.LotID != "" {
		resp["lot_id"] = t.LotID
	}
	return resp
}

// writeFailure maps a service error onto an HTTP response. Typed rejections
// keep their constraint payload; anything else is a 500.
func (h *TradingHandlers) writeFailure(w http.ResponseWriter, err error, logMsg string) {
	rej, ok := domain.AsRejection(err)
	if !ok {
		h.log.Error().Err(err).Msg(logMsg)
		h.writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	h.log.Warn().Str("kind", string(rej.Kind)).Msg(logMsg)
	h.writeJSON(w, statusForRejection(rej.Kind), rejectionResponse(rej))
}

func statusForRejection(kind domain.RejectionKind) int {
	switch kind {
	case domain.KindInsufficientSupply, domain.KindConcurrentConflict:
		return http.StatusConflict
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindLotNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func rejectionResponse(rej *domain.Rejection) map[string]interface{} {
	detail := map[string]interface{}{
		"kind":    string(rej.Kind),
		"message": rej.Message,
	}
	if rej.AvailableUnits != nil {
		detail["available_units"] = *rej.AvailableUnits
	}
	if rej.DailyCap != nil {
		detail["daily_cap"] = *rej.DailyCap
	}
	if rej.NextEligibleAt != nil {
		detail["next_eligible_at"] = rej.NextEligibleAt.Format(time.RFC3339)
	}
	if rej.MaturesAt != nil {
		detail["matures_at"] = rej.MaturesAt.Format(time.RFC3339)
	}
	if rej.Remaining != nil {
		detail["remaining"] = *rej.Remaining
	}
	return map[string]interface{}{"error": detail}
}

// writeJSON writes a JSON response
func (h *TradingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (h *TradingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
