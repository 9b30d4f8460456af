// Package pricing is the eligibility and pricing engine.
//
// Everything in this package is a pure computation over snapshots of the
// ledger and pool state: no I/O, no clock reads. Callers pass "now"
// explicitly so behavior is deterministic under test.
//
// Money is decimal throughout. Intermediate results stay unrounded;
// rounding happens once, at settlement or serialization, with
// RoundSettlement (bankers rounding to 2 decimal places).
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaturityWindow is the holding period before a lot becomes sellable.
// Exactly 24 hours from purchase, not calendar-day based.
const MaturityWindow = 24 * time.Hour

// EligibilityWindow is the minimum spacing between purchases per user.
const EligibilityWindow = 24 * time.Hour

// profitRate is the guaranteed markup earned at maturity.
var profitRate = decimal.RequireFromString("0.02")

// markup is 1 + profitRate, the sell-back multiplier.
var markup = decimal.RequireFromString("1.02")

// CanPurchase reports whether a user may buy at instant now, given their
// most recent buy. No prior purchase means eligible. The boundary instant
// counts as eligible: now == lastBuy + 24h passes.
func CanPurchase(now time.Time, lastBuy *time.Time) bool {
	if lastBuy == nil {
		return true
	}
	return !now.Before(lastBuy.Add(EligibilityWindow))
}

// NextEligibleAt returns the instant at which eligibility flips back to
// true after a purchase at lastBuy.
func NextEligibleAt(lastBuy time.Time) time.Time {
	return lastBuy.Add(EligibilityWindow)
}

// MaxPurchasable returns the largest quantity a user may buy right now:
// the smaller of the pool remainder and the platform-wide daily cap.
func MaxPurchasable(availableUnits, dailyCap int64) int64 {
	if availableUnits < dailyCap {
		return availableUnits
	}
	return dailyCap
}

// Quote is the cost and projected return of a prospective purchase.
type Quote struct {
	TotalPrice  decimal.Decimal
	FutureValue decimal.Decimal
	Profit      decimal.Decimal
}

// QuoteFor prices a prospective purchase of quantity units at unitPrice.
func QuoteFor(quantity int64, unitPrice decimal.Decimal) Quote {
	total := unitPrice.Mul(decimal.NewFromInt(quantity))
	future := total.Mul(markup)
	return Quote{
		TotalPrice:  total,
		FutureValue: future,
		Profit:      future.Sub(total),
	}
}

// MaturityAt returns the instant a lot purchased at purchasedAt becomes
// sellable.
func MaturityAt(purchasedAt time.Time) time.Time {
	return purchasedAt.Add(MaturityWindow)
}

// IsMature reports whether a lot with the given maturity instant is
// sellable at now. The boundary instant counts as mature.
func IsMature(now, maturesAt time.Time) bool {
	return !now.Before(maturesAt)
}

// SellPrice computes the payout for selling quantity units against a lot's
// fixed per-unit cost. The markup applies to the original purchase price,
// so partial sells are proportionally fair and later price changes never
// affect the basis.
func SellPrice(unitCost decimal.Decimal, quantity int64) decimal.Decimal {
	return unitCost.Mul(decimal.NewFromInt(quantity)).Mul(markup)
}

// ExpectedProfit returns the profit a holding of the given cost will have
// earned at maturity.
func ExpectedProfit(cost decimal.Decimal) decimal.Decimal {
	return cost.Mul(profitRate)
}

// AccruedProfit returns the portion of a holding's profit earned by now,
// accrued linearly over the maturity window and clamped to [0, profit].
// Used for projected (not realized) valuation of unmatured lots.
func AccruedProfit(cost decimal.Decimal, purchasedAt, now time.Time) decimal.Decimal {
	profit := ExpectedProfit(cost)

	elapsed := now.Sub(purchasedAt)
	if elapsed <= 0 {
		return decimal.Zero
	}
	if elapsed >= MaturityWindow {
		return profit
	}

	ratio := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(MaturityWindow)))
	return profit.Mul(ratio)
}

// RoundSettlement rounds a money value to 2 decimal places using bankers
// (half-to-even) rounding. Applied only at settlement and serialization,
// never mid-calculation.
func RoundSettlement(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
