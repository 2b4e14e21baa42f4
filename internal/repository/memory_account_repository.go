package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

type memoryAccountRepository struct {
	mu      sync.Mutex
	byID    map[string]*domain.Account
	byEmail map[string]string
	hasher  domain.PasswordHasher
	policy  domain.LockoutPolicy
	now     func() time.Time
}

// NewMemoryAccountRepository returns a process-local implementation used when no
// database is configured. Every mutation holds the repository lock, so counter
// updates are atomic per account.
func NewMemoryAccountRepository(hasher domain.PasswordHasher, policy domain.LockoutPolicy) AccountRepository {
	return &memoryAccountRepository{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
		hasher:  hasher,
		policy:  policy,
		now:     time.Now,
	}
}

func (r *memoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	if err := beforeSave(account, r.hasher); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(account.Email)
	if _, exists := r.byEmail[email]; exists {
		return domain.ErrEmailTaken
	}

	now := r.now().UTC()
	account.ID = uuid.NewString()
	account.Email = email
	account.CreatedAt = now
	account.UpdatedAt = now

	r.byID[account.ID] = cloneAccount(account)
	r.byEmail[email] = account.ID
	return nil
}

func (r *memoryAccountRepository) SetPassword(_ context.Context, id string, credential domain.Credential) error {
	if err := sealCredential(&credential, r.hasher); err != nil {
		return err
	}
	return r.mutate(id, func(stored *domain.Account) error {
		stored.Password = domain.StoredCredential(credential.Hash())
		stored.Login = r.policy.RegisterSuccess()
		return nil
	})
}

func (r *memoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(stored), nil
}

func (r *memoryAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	r.mu.Unlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memoryAccountRepository) ListSellers(_ context.Context, filter SellerFilter) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.Account
	for _, stored := range r.byID {
		if !stored.IsSeller() {
			continue
		}
		if filter.Status != nil && stored.Seller.Verification.Status != *filter.Status {
			continue
		}
		matched = append(matched, *cloneAccount(stored))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(matched) {
		return nil, nil
	}
	end := filter.Offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

func (r *memoryAccountRepository) IncrementLoginAttempts(_ context.Context, id string, now time.Time) (domain.LoginState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return domain.LoginState{}, domain.ErrAccountNotFound
	}
	stored.Login = r.policy.RegisterFailure(stored.Login, now)
	stored.UpdatedAt = r.now().UTC()
	return cloneLogin(stored.Login), nil
}

func (r *memoryAccountRepository) ResetLoginAttempts(_ context.Context, id string) error {
	return r.mutate(id, func(stored *domain.Account) error {
		stored.Login = r.policy.RegisterSuccess()
		return nil
	})
}

func (r *memoryAccountRepository) RecordLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(stored *domain.Account) error {
		stored.Login = r.policy.RegisterSuccess()
		loginAt := at
		stored.LastLoginAt = &loginAt
		return nil
	})
}

func (r *memoryAccountRepository) UpdateVerification(_ context.Context, id string, from domain.VerificationStatus, next domain.Verification) error {
	return r.mutate(id, func(stored *domain.Account) error {
		if !stored.IsSeller() {
			return domain.ErrNotSeller
		}
		if stored.Seller.Verification.Status != from {
			return fmt.Errorf("%w: status changed concurrently", domain.ErrInvalidTransition)
		}
		stored.Seller.Verification = cloneVerification(next)
		return nil
	})
}

func (r *memoryAccountRepository) SetActive(_ context.Context, id string, active bool) error {
	return r.mutate(id, func(stored *domain.Account) error {
		stored.Active = active
		if active {
			stored.Login = r.policy.RegisterSuccess()
		}
		return nil
	})
}

func (r *memoryAccountRepository) mutate(id string, fn func(*domain.Account) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if err := fn(stored); err != nil {
		return err
	}
	stored.UpdatedAt = r.now().UTC()
	return nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	c.Login = cloneLogin(a.Login)
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	if a.Seller != nil {
		seller := *a.Seller
		seller.Verification = cloneVerification(a.Seller.Verification)
		c.Seller = &seller
	}
	return &c
}

func cloneLogin(s domain.LoginState) domain.LoginState {
	if s.LockUntil != nil {
		t := *s.LockUntil
		s.LockUntil = &t
	}
	return s
}

func cloneVerification(v domain.Verification) domain.Verification {
	if v.UpdatedAt != nil {
		t := *v.UpdatedAt
		v.UpdatedAt = &t
	}
	return v
}
