package pool

import (
	"database/sql"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/sharepool/internal/database"
	"github.com/aristath/sharepool/internal/domain"
)

func newTestRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { db.Close() })

	// A single connection keeps every query on the same in-memory database
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE platform_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err, "Failed to create test table")

	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewRepository(db, log), db
}

func TestSeed_Idempotent(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Seed(10000, decimal.RequireFromString("10")))

	// Sell some units, then seed again - counters must survive
	err := database.WithTransaction(repo.db, func(tx *sql.Tx) error {
		return repo.ReserveUnits(tx, 7)
	})
	require.NoError(t, err)

	require.NoError(t, repo.Seed(10000, decimal.RequireFromString("10")))

	sold, err := repo.UnitsSold()
	require.NoError(t, err)
	assert.Equal(t, int64(7), sold, "re-seeding must not reset counters")
}

func TestReserveUnits_DecrementsAvailable(t *testing.T) {
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Seed(10000, decimal.RequireFromString("10")))

	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		return repo.ReserveUnits(tx, 5)
	})
	require.NoError(t, err)

	available, err := repo.AvailableUnits()
	require.NoError(t, err)
	assert.Equal(t, int64(9995), available)
}

func TestReserveUnits_ExactRemainder(t *testing.T) {
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Seed(10, decimal.RequireFromString("10")))

	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		return repo.ReserveUnits(tx, 10)
	})
	require.NoError(t, err, "reserving the exact remainder must succeed")

	available, err := repo.AvailableUnits()
	require.NoError(t, err)
	assert.Zero(t, available)
}

func TestReserveUnits_InsufficientSupply(t *testing.T) {
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Seed(10, decimal.RequireFromString("10")))

	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		return repo.ReserveUnits(tx, 11)
	})

	rej, ok := domain.AsRejection(err)
	require.True(t, ok, "expected a typed rejection, got %v", err)
	assert.Equal(t, domain.KindInsufficientSupply, rej.Kind)
	require.NotNil(t, rej.AvailableUnits)
	assert.Equal(t, int64(10), *rej.AvailableUnits)

	// The failed reservation must not have consumed anything
	available, err := repo.AvailableUnits()
	require.NoError(t, err)
	assert.Equal(t, int64(10), available)
}

func TestReserveUnits_RejectsNonPositive(t *testing.T) {
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Seed(10, decimal.RequireFromString("10")))

	for _, quantity := range []int64{0, -1} {
		err := database.WithTransaction(db, func(tx *sql.Tx) error {
			return repo.ReserveUnits(tx, quantity)
		})
		rej, ok := domain.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindInvalidValue, rej.Kind)
	}
}

// TestReserveUnits_LastUnitRace races several reservations for a single
// remaining unit. Exactly one must win; the rest must see a supply
// rejection, never oversell.
func TestReserveUnits_LastUnitRace(t *testing.T) {
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Seed(1, decimal.RequireFromString("10")))

	const attempts = 8
	results := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = database.WithTransaction(db, func(tx *sql.Tx) error {
				return repo.ReserveUnits(tx, 1)
			})
		}(i)
	}
	wg.Wait()

	var wins, supplyRejections int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		rej, ok := domain.AsRejection(err)
		require.True(t, ok, "unexpected error: %v", err)
		assert.Equal(t, domain.KindInsufficientSupply, rej.Kind)
		supplyRejections++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, supplyRejections)

	sold, err := repo.UnitsSold()
	require.NoError(t, err)
	assert.Equal(t, int64(1), sold)
}

func TestSetPrice(t *testing.T) {
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.Seed(10000, decimal.RequireFromString("10")))

	require.NoError(t, repo.SetPrice(decimal.RequireFromString("12.50")))

	price, err := repo.CurrentPrice()
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("12.50")))
}

func TestSetPrice_RejectsNonPositive(t *testing.T) {
	repo, _ := newTestRepo(t)
	require.NoError(t, repo.Seed(10000, decimal.RequireFromString("10")))

	for _, raw := range []string{"0", "-1"} {
		err := repo.SetPrice(decimal.RequireFromString(raw))
		rej, ok := domain.AsRejection(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindInvalidValue, rej.Kind)
	}

	// Price unchanged after rejected updates
	price, err := repo.CurrentPrice()
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("10")))
}

func TestStatus(t *testing.T) {
	repo, db := newTestRepo(t)
	require.NoError(t, repo.Seed(10000, decimal.RequireFromString("10")))

	err := database.WithTransaction(db, func(tx *sql.Tx) error {
		return repo.ReserveUnits(tx, 25)
	})
	require.NoError(t, err)

	status, err := repo.Status()
	require.NoError(t, err)
	assert.Equal(t, int64(10000), status.TotalUnits)
	assert.Equal(t, int64(25), status.UnitsSold)
	assert.Equal(t, int64(9975), status.AvailableUnits)
	assert.True(t, status.Price.Equal(decimal.RequireFromString("10")))
}
