package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sharepool/internal/clock"
	"github.com/aristath/sharepool/internal/config"
	"github.com/aristath/sharepool/internal/database"
	"github.com/aristath/sharepool/internal/modules/admin"
	adminhandlers "github.com/aristath/sharepool/internal/modules/admin/handlers"
	"github.com/aristath/sharepool/internal/modules/ledger"
	"github.com/aristath/sharepool/internal/modules/pool"
	poolhandlers "github.com/aristath/sharepool/internal/modules/pool/handlers"
	"github.com/aristath/sharepool/internal/modules/trading"
	tradinghandlers "github.com/aristath/sharepool/internal/modules/trading/handlers"
)

// newTestServer wires the full stack against a real on-disk database, the
// same way main does, so middleware behavior is tested end to end.
func newTestServer(t *testing.T) (*Server, *admin.UserRepository) {
	t.Helper()

	dataDir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "pool.db"),
		Profile: database.ProfileLedger,
		Name:    "pool",
	})
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.New(nil).Level(zerolog.Disabled)
	poolRepo := pool.NewRepository(db.Conn(), log)
	require.NoError(t, poolRepo.Seed(10000, decimal.RequireFromString("10")))

	lotRepo := ledger.NewLotRepository(db.Conn(), log)
	txnRepo := ledger.NewTransactionRepository(db.Conn(), log)
	userRepo := admin.NewUserRepository(db.Conn(), log)

	tradingService := trading.NewService(
		db.Conn(), poolRepo, lotRepo, txnRepo,
		clock.System(), 100, log,
	)
	adminService := admin.NewService(userRepo, poolRepo, lotRepo, txnRepo, log)

	srv := New(Config{
		Log:             log,
		DB:              db,
		Config:          &config.Config{DataDir: dataDir, Port: 0},
		Port:            0,
		DevMode:         true,
		Users:           userRepo,
		TradingHandlers: tradinghandlers.NewTradingHandlers(tradingService, log),
		PoolHandlers:    poolhandlers.NewPoolHandlers(poolRepo, log),
		AdminHandlers:   adminhandlers.NewAdminHandlers(adminService, log),
	})

	return srv, userRepo
}

func doRequest(t *testing.T, srv *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

// A caller gets a profile row on first contact, so buyers show up in the
// admin counts and listing without a separate registration step.
func TestIdentityMiddleware_RegistersCallers(t *testing.T) {
	srv, users := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/shares/buy", "buyer-1", `{"quantity": 5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	profile, err := users.Get("buyer-1")
	require.NoError(t, err)
	require.NotNil(t, profile, "buyer must have a profile after transacting")
	assert.False(t, profile.IsAdmin)

	// The admin summary counts the buyer.
	require.NoError(t, users.Ensure("admin-1", ""))
	granted, err := users.SetAdmin("admin-1", true)
	require.NoError(t, err)
	require.True(t, granted)

	rec = doRequest(t, srv, http.MethodGet, "/api/admin/summary", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary struct {
		UserCount        int64 `json:"user_count"`
		TransactionCount int64 `json:"transaction_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, int64(2), summary.UserCount, "admin and buyer")
	assert.Equal(t, int64(1), summary.TransactionCount)

	rec = doRequest(t, srv, http.MethodGet, "/api/admin/users", "admin-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "buyer-1")
}

// Ensure must not clobber a previously granted admin flag when the admin
// makes further requests through the middleware.
func TestIdentityMiddleware_KeepsAdminFlag(t *testing.T) {
	srv, users := newTestServer(t)

	require.NoError(t, users.Ensure("admin-1", ""))
	_, err := users.SetAdmin("admin-1", true)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		rec := doRequest(t, srv, http.MethodGet, "/api/admin/summary", "admin-1", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}
