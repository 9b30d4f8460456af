package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// lotsColumns is the list of columns for the lots table.
// Used to avoid SELECT * which can break when schema changes.
// Column order must match the scan helpers below.
const lotsColumns = `id, user_id, quantity, unit_price, purchase_total, purchased_at, matures_at, sold, created_at`

// LotRepository handles lot database operations.
type LotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewLotRepository creates a new lot repository.
func NewLotRepository(db *sql.DB, log zerolog.Logger) *LotRepository {
	return &LotRepository{
		db:  db,
		log: log.With().Str("repo", "lot").Logger(),
	}
}

// CreateTx inserts a new lot inside the purchase transaction, so the lot,
// the buy transaction, and the pool reservation commit or roll back as one.
func (r *LotRepository) CreateTx(tx *sql.Tx, lot Lot) error {
	if err := lot.Validate(); err != nil {
		return fmt.Errorf("failed to create lot: %w", err)
	}

	_, err := tx.Exec(`
		INSERT INTO lots
		(id, user_id, quantity, unit_price, purchase_total, purchased_at, matures_at, sold, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
	`,
		lot.ID,
		lot.UserID,
		lot.Quantity,
		lot.UnitPrice.String(),
		lot.PurchaseTotal.String(),
		lot.PurchasedAt.Unix(),
		lot.MaturesAt.Unix(),
		lot.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create lot: %w", err)
	}

	r.log.Info().
		Str("lot_id", lot.ID).
		Str("user_id", lot.UserID).
		Int64("quantity", lot.Quantity).
		Str("unit_price", lot.UnitPrice.String()).
		Msg("Lot created")

	return nil
}

// GetByID retrieves a lot by id. Returns nil if it does not exist.
func (r *LotRepository) GetByID(id string) (*Lot, error) {
	row := r.db.QueryRow("SELECT "+lotsColumns+" FROM lots WHERE id = ?", id)

	lot, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lot by id: %w", err)
	}

	return &lot, nil
}

// ActiveByUser retrieves a user's unsold lots, most recent first.
func (r *LotRepository) ActiveByUser(userID string) ([]Lot, error) {
	rows, err := r.db.Query(`
		SELECT `+lotsColumns+` FROM lots
		WHERE user_id = ? AND sold = 0
		ORDER BY purchased_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active lots: %w", err)
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		lot, err := scanLotFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, lot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}

// ConsumeTx decrements a lot's unsold remainder by quantity inside the sell
// transaction, flipping the sold flag when the remainder reaches zero.
//
// The guard clauses (owner, unsold, sufficient remainder) live in the UPDATE
// itself, so a concurrent sell that drained the lot first makes this one
// affect zero rows. Returns false in that case; the caller decides whether
// that is a lost race or a stale read.
func (r *LotRepository) ConsumeTx(tx *sql.Tx, lotID, userID string, quantity int64) (bool, error) {
	if quantity <= 0 {
		return false, fmt.Errorf("consume quantity must be positive, got %d", quantity)
	}

	res, err := tx.Exec(`
		UPDATE lots
		SET quantity = quantity - ?,
		    sold = CASE WHEN quantity - ? = 0 THEN 1 ELSE 0 END
		WHERE id = ? AND user_id = ? AND sold = 0 AND quantity >= ?
	`, quantity, quantity, lotID, userID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to consume lot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read consume result: %w", err)
	}

	return affected == 1, nil
}

// CountActiveUnits returns the total unsold quantity held by a user.
func (r *LotRepository) CountActiveUnits(userID string) (int64, error) {
	var units sql.NullInt64
	err := r.db.QueryRow(`
		SELECT SUM(quantity) FROM lots WHERE user_id = ? AND sold = 0
	`, userID).Scan(&units)
	if err != nil {
		return 0, fmt.Errorf("failed to count active units: %w", err)
	}
	if !units.Valid {
		return 0, nil
	}
	return units.Int64, nil
}

// Scan helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLot(row rowScanner) (Lot, error) {
	var lot Lot
	var unitPrice, purchaseTotal string
	var purchasedAt, maturesAt, createdAt int64
	var sold int

	// Column order: id, user_id, quantity, unit_price, purchase_total, purchased_at, matures_at, sold, created_at
	err := row.Scan(
		&lot.ID,
		&lot.UserID,
		&lot.Quantity,
		&unitPrice,
		&purchaseTotal,
		&purchasedAt,
		&maturesAt,
		&sold,
		&createdAt,
	)
	if err != nil {
		return lot, err
	}

	lot.UnitPrice, err = decimal.NewFromString(unitPrice)
	if err != nil {
		return lot, fmt.Errorf("lot %s has invalid unit price: %w", lot.ID, err)
	}
	lot.PurchaseTotal, err = decimal.NewFromString(purchaseTotal)
	if err != nil {
		return lot, fmt.Errorf("lot %s has invalid purchase total: %w", lot.ID, err)
	}

	lot.PurchasedAt = time.Unix(purchasedAt, 0).UTC()
	lot.MaturesAt = time.Unix(maturesAt, 0).UTC()
	lot.CreatedAt = time.Unix(createdAt, 0).UTC()
	lot.Sold = sold == 1

	return lot, nil
}

func scanLotFromRows(rows *sql.Rows) (Lot, error) {
	return scanLot(rows)
}
