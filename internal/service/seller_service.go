package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
)

// SellerService drives the seller verification workflow.
type SellerService struct {
	accounts   repository.AccountRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SellerListFilters define listing parameters.
type SellerListFilters struct {
	Status *domain.VerificationStatus
	Limit  int
	Offset int
}

// NewSellerService constructs the service.
func NewSellerService(deps AdminDependencies, metrics *observability.Metrics) *SellerService {
	deps = deps.withDefaults()
	return &SellerService{
		accounts:   deps.AccountRepo,
		dispatcher: deps.Dispatcher,
		metrics:    metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
}

// ListSellers returns sellers, optionally filtered by verification status.
func (s *SellerService) ListSellers(ctx context.Context, actor *domain.Account, filters SellerListFilters) ([]domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.accounts.ListSellers(ctx, repository.SellerFilter{
		Status: filters.Status,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
}

// Verify approves a pending seller.
func (s *SellerService) Verify(ctx context.Context, actor *domain.Account, sellerID string) (*domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor.ID, sellerID, domain.VerificationVerified, "")
}

// Reject declines a pending seller.
func (s *SellerService) Reject(ctx context.Context, actor *domain.Account, sellerID, reason string) (*domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor.ID, sellerID, domain.VerificationRejected, reason)
}

// Suspend blocks a seller from any state.
func (s *SellerService) Suspend(ctx context.Context, actor *domain.Account, sellerID, reason string) (*domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor.ID, sellerID, domain.VerificationSuspended, reason)
}

// Reinstate lifts a suspension back to verified.
func (s *SellerService) Reinstate(ctx context.Context, actor *domain.Account, sellerID string) (*domain.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor.ID, sellerID, domain.VerificationVerified, "")
}

// Resubmit lets a rejected seller request review again.
func (s *SellerService) Resubmit(ctx context.Context, seller *domain.Account) (*domain.Account, error) {
	if !seller.IsSeller() {
		return nil, domain.ErrNotSeller
	}
	return s.transition(ctx, seller.ID, seller.ID, domain.VerificationPending, "")
}

// Verification returns the seller's current verification.
func (s *SellerService) Verification(ctx context.Context, sellerID string) (*domain.Account, error) {
	seller, err := s.accounts.GetByID(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if !seller.IsSeller() {
		return nil, domain.ErrNotSeller
	}
	return seller, nil
}

func (s *SellerService) transition(ctx context.Context, actorID, sellerID string, to domain.VerificationStatus, reason string) (*domain.Account, error) {
	seller, err := s.Verification(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	current := seller.Seller.Verification
	next, err := current.Transition(to, reason, actorID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.accounts.UpdateVerification(ctx, seller.ID, current.Status, next); err != nil {
		return nil, err
	}
	seller.Seller.Verification = next

	s.metrics.RecordVerification(string(to))
	s.logger.Info("seller verification changed",
		zap.String("account_id", seller.ID),
		zap.String("actor_id", actorID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)))
	publishEvent(ctx, s.dispatcher, s.logger, s.now(), events.EventSellerVerificationChanged, seller.ID, actorID,
		events.SellerVerificationChangedPayload{OldStatus: current.Status, NewStatus: to, Reason: next.Reason})
	return seller, nil
}
