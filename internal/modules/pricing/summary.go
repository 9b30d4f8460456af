package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the slice of a lot the summary cares about: the unsold
// remainder and its fixed cost basis.
type Holding struct {
	Quantity    int64
	UnitCost    decimal.Decimal
	PurchasedAt time.Time
	MaturesAt   time.Time
}

// Summary is the derived portfolio rollup. Recomputed on demand, never
// persisted.
type Summary struct {
	TotalQuantity int64
	TotalCost     decimal.Decimal

	// Mature holdings redeem at cost plus the full markup.
	MatureQuantity int64
	MatureValue    decimal.Decimal

	// Pending holdings show projected value: cost plus the portion of
	// profit accrued so far, not the full markup.
	PendingQuantity int64
	PendingValue    decimal.Decimal
}

// Summarize rolls up the given holdings as of now.
// With zero holdings every field is zero.
func Summarize(now time.Time, holdings []Holding) Summary {
	s := Summary{
		TotalCost:    decimal.Zero,
		MatureValue:  decimal.Zero,
		PendingValue: decimal.Zero,
	}

	for _, h := range holdings {
		cost := h.UnitCost.Mul(decimal.NewFromInt(h.Quantity))
		s.TotalQuantity += h.Quantity
		s.TotalCost = s.TotalCost.Add(cost)

		if IsMature(now, h.MaturesAt) {
			s.MatureQuantity += h.Quantity
			s.MatureValue = s.MatureValue.Add(cost.Mul(markup))
		} else {
			s.PendingQuantity += h.Quantity
			s.PendingValue = s.PendingValue.Add(cost.Add(AccruedProfit(cost, h.PurchasedAt, now)))
		}
	}

	return s
}
