package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// AccountService exposes administrator operations on any account.
type AccountService struct {
	accounts   repository.AccountRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// AdminDependencies encapsulates collaborators for administrator services.
type AdminDependencies struct {
	AccountRepo repository.AccountRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewAccountService constructs the service.
func NewAccountService(deps AdminDependencies) *AccountService {
	deps = deps.withDefaults()
	return &AccountService{
		accounts:   deps.AccountRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
}

func (d AdminDependencies) withDefaults() AdminDependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func requireAdmin(actor *domain.Account) error {
	if actor == nil || actor.Kind != domain.AccountKindAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// GetAccount fetches any account for an administrator.
func (s *AccountService) GetAccount(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.accounts.GetByID(ctx, id)
}

// Unlock clears failed attempts and any lock without touching the active flag.
func (s *AccountService) Unlock(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.accounts.ResetLoginAttempts(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("account unlocked", zap.String("account_id", id), zap.String("actor_id", actor.ID))
	return s.accounts.GetByID(ctx, id)
}

// SetActive flips the kill switch. Reactivation also clears lockout state.
func (s *AccountService) SetActive(ctx context.Context, actor *domain.Account, id string, active bool) (*domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !active && actor.ID == id {
		return nil, apperrors.NewConflict("administrators cannot deactivate themselves", nil)
	}
	if err := s.accounts.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.logger.Info("account activation changed",
		zap.String("account_id", id),
		zap.String("actor_id", actor.ID),
		zap.Bool("active", active))
	publishEvent(ctx, s.dispatcher, s.logger, s.now(), events.EventAccountActivationChanged, id, actor.ID,
		events.AccountActivationChangedPayload{Active: active})
	return s.accounts.GetByID(ctx, id)
}
