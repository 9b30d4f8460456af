// Package pool manages the platform-wide share pool state.
//
// Pool state lives in the platform_settings table as key/value rows:
// total share units (fixed at seeding), units sold so far (monotonically
// increasing; selling back never returns inventory), and the current unit
// price (admin-mutable). Values are stored as strings and converted on
// access, settings-table style.
package pool

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/sharepool/internal/domain"
)

// Setting keys for the pool counters.
const (
	KeyTotalShares = "total_shares"
	KeySharesSold  = "shares_sold"
	KeySharePrice  = "share_price"
)

// Repository handles platform_settings database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new pool repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "pool").Logger(),
	}
}

// Status is a read-only rollup of the pool counters.
type Status struct {
	TotalUnits     int64
	UnitsSold      int64
	AvailableUnits int64
	Price          decimal.Decimal
}

// Seed inserts the pool settings rows if they do not exist yet.
// Existing rows are left untouched, so re-seeding on every startup is safe.
func (r *Repository) Seed(totalUnits int64, price decimal.Decimal) error {
	now := time.Now().Unix()

	defaults := []struct {
		key   string
		value string
	}{
		{KeyTotalShares, strconv.FormatInt(totalUnits, 10)},
		{KeySharesSold, "0"},
		{KeySharePrice, price.String()},
	}

	for _, d := range defaults {
		_, err := r.db.Exec(`
			INSERT INTO platform_settings (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO NOTHING
		`, d.key, d.value, now)
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", d.key, err)
		}
	}

	r.log.Info().Int64("total_units", totalUnits).Str("price", price.String()).Msg("Pool settings seeded")
	return nil
}

// get retrieves a setting value by key.
// Returns nil if the setting doesn't exist (not an error).
func (r *Repository) get(q queryer, key string) (*string, error) {
	var value string
	err := q.QueryRow("SELECT value FROM platform_settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx so reads can run inside
// or outside a transaction.
type queryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (r *Repository) getInt(q queryer, key string) (int64, error) {
	value, err := r.get(q, key)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, fmt.Errorf("setting %s is not seeded", key)
	}
	intVal, err := strconv.ParseInt(*value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return intVal, nil
}

// TotalUnits returns the fixed pool size.
func (r *Repository) TotalUnits() (int64, error) {
	return r.getInt(r.db, KeyTotalShares)
}

// UnitsSold returns the number of units sold so far.
func (r *Repository) UnitsSold() (int64, error) {
	return r.getInt(r.db, KeySharesSold)
}

// AvailableUnits returns total - sold. Never negative by construction:
// ReserveUnits refuses to push sold past total.
func (r *Repository) AvailableUnits() (int64, error) {
	return r.availableUnits(r.db)
}

func (r *Repository) availableUnits(q queryer) (int64, error) {
	total, err := r.getInt(q, KeyTotalShares)
	if err != nil {
		return 0, err
	}
	sold, err := r.getInt(q, KeySharesSold)
	if err != nil {
		return 0, err
	}
	return total - sold, nil
}

// CurrentPrice returns the current unit price.
func (r *Repository) CurrentPrice() (decimal.Decimal, error) {
	return r.currentPrice(r.db)
}

// CurrentPriceTx returns the current unit price inside a transaction.
// Purchase commits read the price here so the lot records the price at the
// instant of reservation.
func (r *Repository) CurrentPriceTx(tx *sql.Tx) (decimal.Decimal, error) {
	return r.currentPrice(tx)
}

func (r *Repository) currentPrice(q queryer) (decimal.Decimal, error) {
	value, err := r.get(q, KeySharePrice)
	if err != nil {
		return decimal.Zero, err
	}
	if value == nil {
		return decimal.Zero, fmt.Errorf("setting %s is not seeded", KeySharePrice)
	}
	price, err := decimal.NewFromString(*value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("setting %s is not a decimal: %w", KeySharePrice, err)
	}
	return price, nil
}

// SetPrice replaces the unit price. Does not touch existing lots: their
// purchase price is fixed at buy time.
func (r *Repository) SetPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return domain.ErrInvalidValue("share price must be positive")
	}

	_, err := r.db.Exec(`
		UPDATE platform_settings SET value = ?, updated_at = ? WHERE key = ?
	`, price.String(), time.Now().Unix(), KeySharePrice)
	if err != nil {
		return fmt.Errorf("failed to set share price: %w", err)
	}

	r.log.Info().Str("price", price.String()).Msg("Share price updated")
	return nil
}

// ReserveUnits atomically increments shares_sold by n, but only while the
// result stays within total_shares. The check and the increment are one
// UPDATE statement, so two concurrent purchases that together exceed supply
// cannot both succeed regardless of interleaving.
//
// Must be called inside the purchase transaction: rolling back the
// transaction releases the reservation.
func (r *Repository) ReserveUnits(tx *sql.Tx, n int64) error {
	if n <= 0 {
		return domain.ErrInvalidValue("quantity must be positive")
	}

	res, err := tx.Exec(`
		UPDATE platform_settings
		SET value = CAST(CAST(value AS INTEGER) + ? AS TEXT), updated_at = ?
		WHERE key = ?
		  AND CAST(value AS INTEGER) + ? <= (
			SELECT CAST(value AS INTEGER) FROM platform_settings WHERE key = ?
		  )
	`, n, time.Now().Unix(), KeySharesSold, n, KeyTotalShares)
	if err != nil {
		return fmt.Errorf("failed to reserve units: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read reservation result: %w", err)
	}
	if affected == 0 {
		available, availErr := r.availableUnits(tx)
		if availErr != nil {
			return fmt.Errorf("reservation refused and availability unreadable: %w", availErr)
		}
		return domain.ErrInsufficientSupply(available)
	}

	return nil
}

// Status returns the pool rollup for the API.
func (r *Repository) Status() (*Status, error) {
	total, err := r.getInt(r.db, KeyTotalShares)
	if err != nil {
		return nil, err
	}
	sold, err := r.getInt(r.db, KeySharesSold)
	if err != nil {
		return nil, err
	}
	price, err := r.currentPrice(r.db)
	if err != nil {
		return nil, err
	}

	return &Status{
		TotalUnits:     total,
		UnitsSold:      sold,
		AvailableUnits: total - sold,
		Price:          price,
	}, nil
}
