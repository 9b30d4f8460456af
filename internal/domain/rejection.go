// Package domain holds the engine's shared domain types.
//
// Every refusal the engine can produce is a typed Rejection. Rejections are
// recoverable results, never process-fatal, and carry the constraint values
// the caller needs to explain the failure without a second round trip.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// RejectionKind identifies why an operation was refused.
type RejectionKind string

const (
	KindNotEligibleToday   RejectionKind = "not_eligible_today"
	KindExceedsDailyCap    RejectionKind = "exceeds_daily_cap"
	KindInsufficientSupply RejectionKind = "insufficient_supply"
	KindInvalidValue       RejectionKind = "invalid_value"
	KindLotNotFound        RejectionKind = "lot_not_found"
	KindNotMature          RejectionKind = "not_mature"
	KindExceedsHolding     RejectionKind = "exceeds_holding"
	KindPermissionDenied   RejectionKind = "permission_denied"
	KindConcurrentConflict RejectionKind = "concurrent_conflict"
)

// Rejection is a typed, recoverable refusal.
// Only the constraint fields relevant to the kind are populated.
type Rejection struct {
	Kind    RejectionKind
	Message string

	AvailableUnits *int64     // insufficient_supply
	DailyCap       *int64     // exceeds_daily_cap
	NextEligibleAt *time.Time // not_eligible_today
	MaturesAt      *time.Time // not_mature
	Remaining      *int64     // exceeds_holding
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Message)
}

// AsRejection unwraps err into a Rejection if one is in the chain.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// ErrNotEligibleToday reports a buy attempt inside the 24h window.
func ErrNotEligibleToday(nextEligibleAt time.Time) *Rejection {
	return &Rejection{
		Kind:           KindNotEligibleToday,
		Message:        "only one purchase is allowed per 24 hours",
		NextEligibleAt: &nextEligibleAt,
	}
}

// ErrExceedsDailyCap reports a quantity above the per-day ceiling.
func ErrExceedsDailyCap(maxQuantity int64) *Rejection {
	return &Rejection{
		Kind:     KindExceedsDailyCap,
		Message:  fmt.Sprintf("at most %d units may be purchased today", maxQuantity),
		DailyCap: &maxQuantity,
	}
}

// ErrInsufficientSupply reports a reservation beyond the pool's remainder.
func ErrInsufficientSupply(available int64) *Rejection {
	return &Rejection{
		Kind:           KindInsufficientSupply,
		Message:        fmt.Sprintf("only %d units remain in the pool", available),
		AvailableUnits: &available,
	}
}

// ErrInvalidValue reports a non-positive price or quantity.
func ErrInvalidValue(msg string) *Rejection {
	return &Rejection{Kind: KindInvalidValue, Message: msg}
}

// ErrLotNotFound reports a lot that does not exist or belongs to someone else.
// The two cases are deliberately indistinguishable to the caller.
func ErrLotNotFound(lotID string) *Rejection {
	return &Rejection{
		Kind:    KindLotNotFound,
		Message: fmt.Sprintf("lot %s not found", lotID),
	}
}

// ErrNotMature reports a sell attempt before the maturity instant.
func ErrNotMature(maturesAt time.Time) *Rejection {
	return &Rejection{
		Kind:      KindNotMature,
		Message:   "lot has not reached maturity",
		MaturesAt: &maturesAt,
	}
}

// ErrExceedsHolding reports a sell quantity above the lot's remainder.
func ErrExceedsHolding(remaining int64) *Rejection {
	return &Rejection{
		Kind:      KindExceedsHolding,
		Message:   fmt.Sprintf("only %d units remain in this lot", remaining),
		Remaining: &remaining,
	}
}

// ErrPermissionDenied reports a privileged call without the admin capability.
func ErrPermissionDenied() *Rejection {
	return &Rejection{
		Kind:    KindPermissionDenied,
		Message: "admin capability required",
	}
}

// ErrConcurrentConflict reports a lost reservation or sell race.
// The caller may retry.
func ErrConcurrentConflict(msg string) *Rejection {
	return &Rejection{Kind: KindConcurrentConflict, Message: msg}
}
