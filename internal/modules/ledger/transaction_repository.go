package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// transactionsColumns is the list of columns for the transactions table.
// Column order must match the scan helper.
const transactionsColumns = `id, user_id, kind, quantity, unit_price, total_amount, lot_id, created_at`

// TransactionRepository handles the append-only transaction log.
// Rows are inserted once and never updated or deleted.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transaction").Logger(),
	}
}

// CreateTx appends a transaction inside the enclosing buy/sell transaction.
func (r *TransactionRepository) CreateTx(tx *sql.Tx, txn Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err := tx.Exec(`
		INSERT INTO transactions
		(id, user_id, kind, quantity, unit_price, total_amount, lot_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.UserID,
		string(txn.Kind),
		txn.Quantity,
		txn.UnitPrice.String(),
		txn.TotalAmount.String(),
		nullString(txn.LotID),
		txn.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	r.log.Info().
		Str("tx_id", txn.ID).
		Str("user_id", txn.UserID).
		Str("kind", string(txn.Kind)).
		Int64("quantity", txn.Quantity).
		Str("total", txn.TotalAmount.String()).
		Msg("Transaction recorded")

	return nil
}

// LastBuyTime returns the timestamp of the user's most recent buy, or nil
// if they have never bought. This is the daily-limit index: the eligibility
// check reads it under the same per-user serialization as the insert.
func (r *TransactionRepository) LastBuyTime(userID string) (*time.Time, error) {
	var createdAt sql.NullInt64
	err := r.db.QueryRow(`
		SELECT MAX(created_at) FROM transactions
		WHERE user_id = ? AND kind = 'buy'
	`, userID).Scan(&createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get last buy time: %w", err)
	}

	if !createdAt.Valid {
		return nil, nil
	}

	t := time.Unix(createdAt.Int64, 0).UTC()
	return &t, nil
}

// HistoryByUser retrieves a user's transactions, most recent first.
func (r *TransactionRepository) HistoryByUser(userID string, limit int) ([]Transaction, error) {
	rows, err := r.db.Query(`
		SELECT `+transactionsColumns+` FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// History retrieves all transactions, most recent first. Admin rollups only.
func (r *TransactionRepository) History(limit int) ([]Transaction, error) {
	rows, err := r.db.Query(`
		SELECT `+transactionsColumns+` FROM transactions
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// Count returns the total number of transactions.
func (r *TransactionRepository) Count() (int64, error) {
	var count int64
	err := r.db.QueryRow("SELECT COUNT(*) FROM transactions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// TotalVolume returns the sum of all transaction totals (traded volume).
func (r *TransactionRepository) TotalVolume() (decimal.Decimal, error) {
	rows, err := r.db.Query("SELECT total_amount FROM transactions")
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get transaction volume: %w", err)
	}
	defer rows.Close()

	// Summed in decimal, not SQL: total_amount is stored as a decimal
	// string and SQLite would sum it in binary floating point.
	volume := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan transaction amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid transaction amount %q: %w", amount, err)
		}
		volume = volume.Add(d)
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating transactions: %w", err)
	}

	return volume, nil
}

// TotalSpentByUser returns the sum of a user's buy totals.
func (r *TransactionRepository) TotalSpentByUser(userID string) (decimal.Decimal, error) {
	rows, err := r.db.Query(`
		SELECT total_amount FROM transactions WHERE user_id = ? AND kind = 'buy'
	`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get user spend: %w", err)
	}
	defer rows.Close()

	spent := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan transaction amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid transaction amount %q: %w", amount, err)
		}
		spent = spent.Add(d)
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating transactions: %w", err)
	}

	return spent, nil
}

func collectTransactions(rows *sql.Rows) ([]Transaction, error) {
	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var txn Transaction
	var kind, unitPrice, totalAmount string
	var lotID sql.NullString
	var createdAt int64

	// Column order: id, user_id, kind, quantity, unit_price, total_amount, lot_id, created_at
	err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&kind,
		&txn.Quantity,
		&unitPrice,
		&totalAmount,
		&lotID,
		&createdAt,
	)
	if err != nil {
		return txn, err
	}

	txn.Kind = TransactionKind(kind)

	txn.UnitPrice, err = decimal.NewFromString(unitPrice)
	if err != nil {
		return txn, fmt.Errorf("transaction %s has invalid unit price: %w", txn.ID, err)
	}
	txn.TotalAmount, err = decimal.NewFromString(totalAmount)
	if err != nil {
		return txn, fmt.Errorf("transaction %s has invalid total: %w", txn.ID, err)
	}

	if lotID.Valid {
		txn.LotID = lotID.String
	}
	txn.CreatedAt = time.Unix(createdAt, 0).UTC()

	return txn, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
