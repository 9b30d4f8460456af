package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/sharepool/internal/clock"
	"github.com/aristath/sharepool/internal/domain"
	"github.com/aristath/sharepool/internal/modules/ledger"
	"github.com/aristath/sharepool/internal/modules/pool"
	"github.com/aristath/sharepool/internal/modules/trading"
)

func newTestRouter(t *testing.T) (http.Handler, *clock.Manual) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE platform_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE lots (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK(quantity >= 0),
			unit_price TEXT NOT NULL,
			purchase_total TEXT NOT NULL,
			purchased_at INTEGER NOT NULL,
			matures_at INTEGER NOT NULL,
			sold INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);
		CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('buy', 'sell')),
			quantity INTEGER NOT NULL CHECK(quantity > 0),
			unit_price TEXT NOT NULL,
			total_amount TEXT NOT NULL,
			lot_id TEXT,
			created_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	poolRepo := pool.NewRepository(db, log)
	require.NoError(t, poolRepo.Seed(10000, decimal.RequireFromString("10")))

	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := trading.NewService(
		db, poolRepo,
		ledger.NewLotRepository(db, log),
		ledger.NewTransactionRepository(db, log),
		clk, 100, log,
	)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewTradingHandlers(svc, log).RegisterRoutes(r)
	})

	return r, clk
}

func doJSON(t *testing.T, router http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleBuy(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/shares/buy", "user-1", `{"quantity": 5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Lot struct {
			ID            string `json:"id"`
			Quantity      int64  `json:"quantity"`
			PurchaseTotal string `json:"purchase_total"`
		} `json:"lot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Lot.ID)
	assert.Equal(t, int64(5), resp.Lot.Quantity)
	assert.Equal(t, "50", resp.Lot.PurchaseTotal)
}

func TestHandleBuy_RequiresIdentity(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/shares/buy", "", `{"quantity": 5}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleBuy_RejectionStatusCodes(t *testing.T) {
	router, _ := newTestRouter(t)

	// Eligibility rejection: second buy inside the window
	rec := doJSON(t, router, http.MethodPost, "/api/shares/buy", "user-1", `{"quantity": 5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/shares/buy", "user-1", `{"quantity": 5}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error struct {
			Kind           string `json:"kind"`
			NextEligibleAt string `json:"next_eligible_at"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_eligible_today", resp.Error.Kind)
	assert.NotEmpty(t, resp.Error.NextEligibleAt)
}

func TestHandleSell_Lifecycle(t *testing.T) {
	router, clk := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/shares/buy", "user-1", `{"quantity": 5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var buyResp struct {
		Lot struct {
			ID string `json:"id"`
		} `json:"lot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buyResp))

	// Immature sell -> 422 with the maturity instant
	rec = doJSON(t, router, http.MethodPost, "/api/shares/sell", "user-1",
		`{"lot_id": "`+buyResp.Lot.ID+`", "quantity": 5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	clk.Advance(24 * time.Hour)

	rec = doJSON(t, router, http.MethodPost, "/api/shares/sell", "user-1",
		`{"lot_id": "`+buyResp.Lot.ID+`", "quantity": 5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sellResp struct {
		Payout     string `json:"payout"`
		LotRetired bool   `json:"lot_retired"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sellResp))
	assert.Equal(t, "51.00", sellResp.Payout)
	assert.True(t, sellResp.LotRetired)

	// Unknown lot -> 404
	rec = doJSON(t, router, http.MethodPost, "/api/shares/sell", "user-1",
		`{"lot_id": "nope", "quantity": 1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetShares(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/shares/buy", "user-1", `{"quantity": 5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/shares", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Lots    []map[string]interface{} `json:"lots"`
		Summary struct {
			TotalQuantity int64  `json:"total_quantity"`
			TotalCost     string `json:"total_cost"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Lots, 1)
	assert.Equal(t, false, resp.Lots[0]["is_mature"])
	assert.Equal(t, "1.00", resp.Lots[0]["expected_profit"])
	assert.Equal(t, int64(5), resp.Summary.TotalQuantity)
	assert.Equal(t, "50", resp.Summary.TotalCost)

	// The standalone summary endpoint returns the same rollup
	rec = doJSON(t, router, http.MethodGet, "/api/shares/summary", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalQuantity int64  `json:"total_quantity"`
		TotalCost     string `json:"total_cost"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(5), summary.TotalQuantity)
	assert.Equal(t, "50", summary.TotalCost)
}

func TestHandleGetEligibility(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/shares/eligibility", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CanBuyToday bool  `json:"can_buy_today"`
		MaxQuantity int64 `json:"max_quantity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.CanBuyToday)
	assert.Equal(t, int64(100), resp.MaxQuantity)
}

func TestStatusForRejection(t *testing.T) {
	testCases := []struct {
		kind     domain.RejectionKind
		expected int
	}{
		{domain.KindInsufficientSupply, http.StatusConflict},
		{domain.KindConcurrentConflict, http.StatusConflict},
		{domain.KindPermissionDenied, http.StatusForbidden},
		{domain.KindLotNotFound, http.StatusNotFound},
		{domain.KindNotEligibleToday, http.StatusUnprocessableEntity},
		{domain.KindExceedsDailyCap, http.StatusUnprocessableEntity},
		{domain.KindInvalidValue, http.StatusUnprocessableEntity},
		{domain.KindNotMature, http.StatusUnprocessableEntity},
		{domain.KindExceedsHolding, http.StatusUnprocessableEntity},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.expected, statusForRejection(tc.kind))
		})
	}
}
