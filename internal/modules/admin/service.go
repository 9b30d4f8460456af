package admin

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/sharepool/internal/domain"
	"github.com/aristath/sharepool/internal/modules/ledger"
	"github.com/aristath/sharepool/internal/modules/pool"
)

// Service exposes privileged platform controls. Every operation checks the
// caller's admin capability first and refuses with PermissionDenied
// otherwise, without leaking whether the operation would have succeeded.
type Service struct {
	users *UserRepository
	pool  *pool.Repository
	lots  *ledger.LotRepository
	txns  *ledger.TransactionRepository
	log   zerolog.Logger
}

// NewService creates a new admin service.
func NewService(
	users *UserRepository,
	poolRepo *pool.Repository,
	lotRepo *ledger.LotRepository,
	txnRepo *ledger.TransactionRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		users: users,
		pool:  poolRepo,
		lots:  lotRepo,
		txns:  txnRepo,
		log:   log.With().Str("service", "admin").Logger(),
	}
}

// PlatformSummary aggregates platform-wide state for the admin dashboard.
type PlatformSummary struct {
	Pool             pool.Status
	UserCount        int64
	TransactionCount int64
	TotalVolume      decimal.Decimal
}

// UserOverview is one row of the admin user listing.
type UserOverview struct {
	Profile     Profile
	ActiveUnits int64
	TotalSpent  decimal.Decimal
}

func (s *Service) requireAdmin(callerID string) error {
	profile, err := s.users.Get(callerID)
	if err != nil {
		return err
	}
	if profile == nil || !profile.IsAdmin {
		return domain.ErrPermissionDenied()
	}
	return nil
}

// SetSharePrice updates the pool's unit price. The new price applies to
// future purchases only; existing lots keep their recorded basis.
func (s *Service) SetSharePrice(callerID string, price decimal.Decimal) error {
	if err := s.requireAdmin(callerID); err != nil {
		return err
	}
	if err := s.pool.SetPrice(price); err != nil {
		return err
	}

	s.log.Info().
		Str("admin_id", callerID).
		Str("price", price.String()).
		Msg("Share price updated")
	return nil
}

// SetAdminFlag grants or revokes another user's admin capability.
// Self-demotion is allowed; it is logged loudly because it can lock the
// last admin out of the platform.
func (s *Service) SetAdminFlag(callerID, targetID string, isAdmin bool) error {
	if err := s.requireAdmin(callerID); err != nil {
		return err
	}

	found, err := s.users.SetAdmin(targetID, isAdmin)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrInvalidValue("no such user")
	}

	if callerID == targetID && !isAdmin {
		s.log.Warn().
			Str("admin_id", callerID).
			Msg("Admin revoked their own capability")
	} else {
		s.log.Info().
			Str("admin_id", callerID).
			Str("target_id", targetID).
			Bool("is_admin", isAdmin).
			Msg("Admin flag changed")
	}
	return nil
}

// Summary returns platform-wide counters for the admin dashboard.
func (s *Service) Summary(callerID string) (*PlatformSummary, error) {
	if err := s.requireAdmin(callerID); err != nil {
		return nil, err
	}

	status, err := s.pool.Status()
	if err != nil {
		return nil, err
	}
	userCount, err := s.users.Count()
	if err != nil {
		return nil, err
	}
	txnCount, err := s.txns.Count()
	if err != nil {
		return nil, err
	}
	volume, err := s.txns.TotalVolume()
	if err != nil {
		return nil, err
	}

	return &PlatformSummary{
		Pool:             *status,
		UserCount:        userCount,
		TransactionCount: txnCount,
		TotalVolume:      volume,
	}, nil
}

// ListUsers returns every profile with its live holdings aggregates.
func (s *Service) ListUsers(callerID string) ([]UserOverview, error) {
	if err := s.requireAdmin(callerID); err != nil {
		return nil, err
	}

	profiles, err := s.users.List()
	if err != nil {
		return nil, err
	}

	overviews := make([]UserOverview, 0, len(profiles))
	for _, p := range profiles {
		units, err := s.lots.CountActiveUnits(p.ID)
		if err != nil {
			return nil, err
		}
		spent, err := s.txns.TotalSpentByUser(p.ID)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, UserOverview{
			Profile:     p,
			ActiveUnits: units,
			TotalSpent:  spent,
		})
	}
	return overviews, nil
}

// Transactions returns the platform-wide transaction log, most recent first.
func (s *Service) Transactions(callerID string, limit int) ([]ledger.Transaction, error) {
	if err := s.requireAdmin(callerID); err != nil {
		return nil, err
	}
	return s.txns.History(limit)
}
