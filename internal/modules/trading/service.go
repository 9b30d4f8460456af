// Package trading implements the purchase and sell operations over the
// pool state and the share ledger.
//
// Purchases move Eligible -> Reserving -> Committed | Rejected: the
// eligibility and cap checks run under a per-user lock, then the pool
// reservation, lot insert, and buy transaction commit as one database
// transaction. Sells move Mature -> Selling -> Settled | Rejected under a
// per-lot lock. Sells never return inventory to the pool; sold units stay
// retired and the payout is purely a cash settlement.
package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/sharepool/internal/clock"
	"github.com/aristath/sharepool/internal/database"
	"github.com/aristath/sharepool/internal/domain"
	"github.com/aristath/sharepool/internal/modules/ledger"
	"github.com/aristath/sharepool/internal/modules/pool"
	"github.com/aristath/sharepool/internal/modules/pricing"
)

// Service executes buys and sells against the shared pool and ledger.
type Service struct {
	db       *sql.DB
	pool     *pool.Repository
	lots     *ledger.LotRepository
	txns     *ledger.TransactionRepository
	clk      clock.Clock
	dailyCap int64
	log      zerolog.Logger

	userLocks keyedMutex
	lotLocks  keyedMutex
}

// NewService creates a new trading service.
func NewService(
	db *sql.DB,
	poolRepo *pool.Repository,
	lotRepo *ledger.LotRepository,
	txnRepo *ledger.TransactionRepository,
	clk clock.Clock,
	dailyCap int64,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:       db,
		pool:     poolRepo,
		lots:     lotRepo,
		txns:     txnRepo,
		clk:      clk,
		dailyCap: dailyCap,
		log:      log.With().Str("service", "trading").Logger(),
	}
}

// PurchaseResult is the committed outcome of a buy.
type PurchaseResult struct {
	Lot         ledger.Lot
	Transaction ledger.Transaction
}

// Settlement is the committed outcome of a sell.
type Settlement struct {
	Transaction ledger.Transaction
	Payout      decimal.Decimal
	LotRetired  bool // true when the sell consumed the lot's full remainder
}

// Eligibility describes whether and how much a user may buy right now.
type Eligibility struct {
	CanBuyToday    bool
	NextEligibleAt *time.Time
	MaxQuantity    int64
}

// Buy purchases quantity units for userID at the current pool price.
//
// Rejections, in order: InvalidValue (non-positive quantity),
// NotEligibleToday (a buy exists inside the 24h window), ExceedsDailyCap,
// InsufficientSupply (reservation refused). Same-user attempts are
// serialized so two concurrent buys by one user cannot both pass the
// eligibility read.
func (s *Service) Buy(userID string, quantity int64) (*PurchaseResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidValue("quantity must be positive")
	}

	unlock := s.userLocks.lock(userID)
	defer unlock()

	now := s.clk.Now()

	lastBuy, err := s.txns.LastBuyTime(userID)
	if err != nil {
		return nil, err
	}
	if !pricing.CanPurchase(now, lastBuy) {
		return nil, domain.ErrNotEligibleToday(pricing.NextEligibleAt(*lastBuy))
	}

	if quantity > s.dailyCap {
		return nil, domain.ErrExceedsDailyCap(s.dailyCap)
	}

	var result *PurchaseResult
	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		// Reservation first: a single conditional update that fails the
		// whole transaction when supply is short.
		if err := s.pool.ReserveUnits(tx, quantity); err != nil {
			return err
		}

		// Price is read inside the transaction so the lot records the pool
		// price at the instant of reservation.
		price, err := s.pool.CurrentPriceTx(tx)
		if err != nil {
			return err
		}

		lot := ledger.Lot{
			ID:            uuid.NewString(),
			UserID:        userID,
			Quantity:      quantity,
			UnitPrice:     price,
			PurchaseTotal: price.Mul(decimal.NewFromInt(quantity)),
			PurchasedAt:   now,
			MaturesAt:     pricing.MaturityAt(now),
			CreatedAt:     now,
		}
		if err := s.lots.CreateTx(tx, lot); err != nil {
			return err
		}

		txn := ledger.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Kind:        ledger.KindBuy,
			Quantity:    quantity,
			UnitPrice:   price,
			TotalAmount: lot.PurchaseTotal,
			LotID:       lot.ID,
			CreatedAt:   now,
		}
		if err := s.txns.CreateTx(tx, txn); err != nil {
			return err
		}

		result = &PurchaseResult{Lot: lot, Transaction: txn}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Int64("quantity", quantity).
		Str("lot_id", result.Lot.ID).
		Msg("Purchase committed")

	return result, nil
}

// Sell settles quantity units of the caller's lot at the lot's original
// price plus the guaranteed markup.
//
// Rejections, in order: LotNotFound (missing, foreign, or already fully
// sold), NotMature, InvalidValue, ExceedsHolding. Sells against the same
// lot are serialized; the conditional remainder decrement backstops any
// interleaving the lock does not cover.
func (s *Service) Sell(userID, lotID string, quantity int64) (*Settlement, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	unlock := s.lotLocks.lock(lotID)
	defer unlock()

	lot, err := s.lots.GetByID(lotID)
	if err != nil {
		return nil, err
	}
	// Ownership failures are indistinguishable from missing lots, as are
	// fully consumed lots (excluded from active holdings).
	if lot == nil || lot.UserID != userID || lot.Sold {
		return nil, domain.ErrLotNotFound(lotID)
	}

	now := s.clk.Now()
	if !lot.IsMature(now) {
		return nil, domain.ErrNotMature(lot.MaturesAt)
	}

	if quantity <= 0 {
		return nil, domain.ErrInvalidValue("quantity must be positive")
	}
	if quantity > lot.Quantity {
		return nil, domain.ErrExceedsHolding(lot.Quantity)
	}

	// Markup applies to the lot's original per-unit price, so partial
	// sells are proportionally fair and later admin price changes never
	// move the basis. Rounded once, at settlement.
	payout := pricing.RoundSettlement(pricing.SellPrice(lot.UnitPrice, quantity))

	var settlement *Settlement
	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		consumed, err := s.lots.ConsumeTx(tx, lotID, userID, quantity)
		if err != nil {
			return err
		}
		if !consumed {
			return domain.ErrConcurrentConflict("lot changed during sell, retry")
		}

		txn := ledger.Transaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			Kind:        ledger.KindSell,
			Quantity:    quantity,
			UnitPrice:   lot.UnitPrice,
			TotalAmount: payout,
			LotID:       lotID,
			CreatedAt:   now,
		}
		if err := s.txns.CreateTx(tx, txn); err != nil {
			return err
		}

		settlement = &Settlement{
			Transaction: txn,
			Payout:      payout,
			LotRetired:  quantity == lot.Quantity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("lot_id", lotID).
		Int64("quantity", quantity).
		Str("payout", payout.String()).
		Bool("retired", settlement.LotRetired).
		Msg("Sell settled")

	return settlement, nil
}

// Portfolio returns a user's active lots and their derived summary.
// Pure recomputation over the snapshot: calling it twice without an
// intervening mutation yields identical results.
func (s *Service) Portfolio(userID string) ([]ledger.Lot, pricing.Summary, error) {
	lots, err := s.lots.ActiveByUser(userID)
	if err != nil {
		return nil, pricing.Summary{}, err
	}

	holdings := make([]pricing.Holding, 0, len(lots))
	for _, lot := range lots {
		holdings = append(holdings, lot.Holding())
	}

	return lots, pricing.Summarize(s.clk.Now(), holdings), nil
}

// Eligibility reports whether userID may buy now, when they next can, and
// the largest quantity a purchase could request (pool remainder capped by
// the daily ceiling).
func (s *Service) Eligibility(userID string) (*Eligibility, error) {
	lastBuy, err := s.txns.LastBuyTime(userID)
	if err != nil {
		return nil, err
	}

	available, err := s.pool.AvailableUnits()
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	elig := &Eligibility{
		CanBuyToday: pricing.CanPurchase(now, lastBuy),
		MaxQuantity: pricing.MaxPurchasable(available, s.dailyCap),
	}
	if !elig.CanBuyToday {
		next := pricing.NextEligibleAt(*lastBuy)
		elig.NextEligibleAt = &next
	}

	return elig, nil
}

// Now exposes the service clock so read surfaces can derive maturity state
// consistently with the operations themselves.
func (s *Service) Now() time.Time {
	return s.clk.Now()
}

// History returns the caller's transactions, most recent first.
func (s *Service) History(userID string, limit int) ([]ledger.Transaction, error) {
	return s.txns.HistoryByUser(userID, limit)
}

// Quote prices a prospective purchase at the current pool price.
func (s *Service) Quote(quantity int64) (*pricing.Quote, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidValue("quantity must be positive")
	}
	price, err := s.pool.CurrentPrice()
	if err != nil {
		return nil, err
	}
	q := pricing.QuoteFor(quantity, price)
	return &q, nil
}
