// Package ledger holds the per-user share ledger and the transaction log.
//
// A Lot is one purchase event's unsold remainder. Lots are created by
// purchases, decremented by sells, never deleted: a fully consumed lot is
// flagged sold and excluded from active holdings. A Transaction is an
// immutable fact appended for every buy and sell; the log doubles as the
// source of truth for the per-user last-purchase time used by the daily
// limit.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/sharepool/internal/modules/pricing"
)

// Lot represents one purchase's remaining, not-yet-fully-sold quantity.
type Lot struct {
	ID     string
	UserID string

	// Quantity is the unsold remainder. Positive while unsold.
	Quantity int64

	// UnitPrice is the pool price at the instant of purchase. Fixed for
	// the lot's lifetime; partial sells keep settling against it.
	UnitPrice decimal.Decimal

	// PurchaseTotal is the original quantity times UnitPrice. Immutable.
	PurchaseTotal decimal.Decimal

	PurchasedAt time.Time
	MaturesAt   time.Time
	Sold        bool
	CreatedAt   time.Time
}

// Validate checks lot invariants before insertion.
func (l Lot) Validate() error {
	if l.UserID == "" {
		return fmt.Errorf("lot user id is required")
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("lot quantity must be positive, got %d", l.Quantity)
	}
	if !l.UnitPrice.IsPositive() {
		return fmt.Errorf("lot unit price must be positive, got %s", l.UnitPrice)
	}
	if !l.MaturesAt.After(l.PurchasedAt) {
		return fmt.Errorf("lot maturity must follow purchase time")
	}
	return nil
}

// IsMature reports whether the lot is sellable at now.
func (l Lot) IsMature(now time.Time) bool {
	return pricing.IsMature(now, l.MaturesAt)
}

// RemainingCost is the cost basis of the unsold remainder.
func (l Lot) RemainingCost() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// ExpectedProfit is the profit the remainder will have earned at maturity.
func (l Lot) ExpectedProfit() decimal.Decimal {
	return pricing.ExpectedProfit(l.RemainingCost())
}

// Holding converts the lot's unsold remainder into the pricing engine's
// summary input.
func (l Lot) Holding() pricing.Holding {
	return pricing.Holding{
		Quantity:    l.Quantity,
		UnitCost:    l.UnitPrice,
		PurchasedAt: l.PurchasedAt,
		MaturesAt:   l.MaturesAt,
	}
}

// TransactionKind is the direction of a transaction.
type TransactionKind string

const (
	KindBuy  TransactionKind = "buy"
	KindSell TransactionKind = "sell"
)

// Transaction is an immutable buy/sell fact. Created once, never updated.
type Transaction struct {
	ID       string
	UserID   string
	Kind     TransactionKind
	Quantity int64

	// UnitPrice is the price per unit at execution; TotalAmount the cash
	// moved (cost for buys, payout for sells).
	UnitPrice   decimal.Decimal
	TotalAmount decimal.Decimal

	// LotID references the lot involved. Always set for sells, set to the
	// created lot for buys.
	LotID string

	CreatedAt time.Time
}

// Validate checks transaction invariants before insertion.
func (t Transaction) Validate() error {
	if t.UserID == "" {
		return fmt.Errorf("transaction user id is required")
	}
	if t.Kind != KindBuy && t.Kind != KindSell {
		return fmt.Errorf("invalid transaction kind %q", t.Kind)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("transaction quantity must be positive, got %d", t.Quantity)
	}
	if !t.UnitPrice.IsPositive() {
		return fmt.Errorf("transaction unit price must be positive, got %s", t.UnitPrice)
	}
	return nil
}
