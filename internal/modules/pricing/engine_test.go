package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanPurchase_NoHistory(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, CanPurchase(now, nil), "a user with no buys is always eligible")
}

func TestCanPurchase_WindowBoundary(t *testing.T) {
	lastBuy := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		now      time.Time
		eligible bool
	}{
		{"immediately after buy", lastBuy.Add(time.Second), false},
		{"one hour later", lastBuy.Add(time.Hour), false},
		{"one second before window closes", lastBuy.Add(24*time.Hour - time.Second), false},
		{"exactly at the boundary", lastBuy.Add(24 * time.Hour), true},
		{"after the boundary", lastBuy.Add(24*time.Hour + time.Second), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.eligible, CanPurchase(tc.now, &lastBuy))
		})
	}
}

func TestNextEligibleAt(t *testing.T) {
	lastBuy := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	next := NextEligibleAt(lastBuy)

	assert.Equal(t, lastBuy.Add(24*time.Hour), next)
	assert.True(t, CanPurchase(next, &lastBuy), "eligibility flips exactly at the reported instant")
}

func TestMaxPurchasable(t *testing.T) {
	testCases := []struct {
		name      string
		available int64
		cap       int64
		expected  int64
	}{
		{"supply exceeds cap", 9995, 100, 100},
		{"supply below cap", 42, 100, 42},
		{"pool exhausted", 0, 100, 0},
		{"equal", 100, 100, 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MaxPurchasable(tc.available, tc.cap))
		})
	}
}

func TestQuoteFor(t *testing.T) {
	price := decimal.RequireFromString("10")

	quote := QuoteFor(5, price)

	assert.True(t, quote.TotalPrice.Equal(decimal.RequireFromString("50")), "total = %s", quote.TotalPrice)
	assert.True(t, quote.FutureValue.Equal(decimal.RequireFromString("51")), "future = %s", quote.FutureValue)
	assert.True(t, quote.Profit.Equal(decimal.RequireFromString("1")), "profit = %s", quote.Profit)
}

func TestQuoteFor_FractionalPrice(t *testing.T) {
	price := decimal.RequireFromString("10.33")

	quote := QuoteFor(3, price)

	// 30.99 * 1.02 = 31.6098 - exact, no rounding before settlement
	assert.True(t, quote.TotalPrice.Equal(decimal.RequireFromString("30.99")))
	assert.True(t, quote.FutureValue.Equal(decimal.RequireFromString("31.6098")))
}

func TestIsMature_Boundary(t *testing.T) {
	maturesAt := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	assert.False(t, IsMature(maturesAt.Add(-time.Second), maturesAt))
	assert.True(t, IsMature(maturesAt, maturesAt), "the maturity instant itself counts as mature")
	assert.True(t, IsMature(maturesAt.Add(time.Second), maturesAt))
}

func TestSellPrice(t *testing.T) {
	unitCost := decimal.RequireFromString("10")

	// 5 units at $10 with 2% markup
	payout := SellPrice(unitCost, 5)
	assert.True(t, payout.Equal(decimal.RequireFromString("51")), "payout = %s", payout)

	// Partial sell of the same lot is proportional
	partial := SellPrice(unitCost, 2)
	assert.True(t, partial.Equal(decimal.RequireFromString("20.4")), "partial = %s", partial)
}

func TestRoundSettlement_BankersRounding(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"20.405", "20.40"}, // ties to even
		{"20.415", "20.42"},
		{"51.00", "51"},
		{"31.6098", "31.61"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got := RoundSettlement(decimal.RequireFromString(tc.in))
			assert.True(t, got.Equal(decimal.RequireFromString(tc.expected)), "got %s", got)
		})
	}
}

func TestAccruedProfit(t *testing.T) {
	cost := decimal.RequireFromString("100")
	purchasedAt := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("nothing accrued at purchase", func(t *testing.T) {
		got := AccruedProfit(cost, purchasedAt, purchasedAt)
		assert.True(t, got.IsZero())
	})

	t.Run("half the window accrues half the profit", func(t *testing.T) {
		got := AccruedProfit(cost, purchasedAt, purchasedAt.Add(12*time.Hour))
		assert.True(t, got.Equal(decimal.RequireFromString("1")), "got %s", got)
	})

	t.Run("clamped at maturity", func(t *testing.T) {
		got := AccruedProfit(cost, purchasedAt, purchasedAt.Add(48*time.Hour))
		assert.True(t, got.Equal(decimal.RequireFromString("2")), "got %s", got)
	})

	t.Run("clock skew before purchase accrues nothing", func(t *testing.T) {
		got := AccruedProfit(cost, purchasedAt, purchasedAt.Add(-time.Hour))
		assert.True(t, got.IsZero())
	})
}
