package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
)

const testPassword = "Password123!"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	cfg      config.Config
	clock    *fakeClock
	accounts repository.AccountRepository
	resets   repository.PasswordResetRepository
	revoked  *auth.MemoryRevocationStore
	metrics  *observability.Metrics
	recorder *eventRecorder
	auth     *AuthService
	admin    *AccountService
	sellers  *SellerService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   60,
			PasswordResetTTLMinutes: 30,
			BcryptCost:              bcrypt.MinCost,
		},
		Lockout: config.LockoutConfig{MaxAttempts: 5, LockDurationMinutes: 120},
	}
	hasher := auth.NewHasher(bcrypt.MinCost)
	policy := LockoutPolicyFromConfig(cfg.Lockout)

	env := &testEnv{
		cfg:      cfg,
		clock:    newFakeClock(),
		accounts: repository.NewMemoryAccountRepository(hasher, policy),
		resets:   repository.NewMemoryPasswordResetRepository(),
		revoked:  auth.NewMemoryRevocationStore(),
		metrics:  observability.NewMetrics(),
		recorder: &eventRecorder{},
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{
		events.EventAccountRegistered,
		events.EventLoginFailed,
		events.EventAccountLocked,
		events.EventPasswordChanged,
		events.EventPasswordResetRequested,
		events.EventAccountActivationChanged,
		events.EventSellerVerificationChanged,
	} {
		dispatcher.Subscribe(et, env.recorder.handle)
	}

	env.auth = NewAuthService(cfg, AuthDependencies{
		AccountRepo:       env.accounts,
		PasswordResetRepo: env.resets,
		Revocations:       env.revoked,
		Hasher:            hasher,
		Dispatcher:        dispatcher,
		Metrics:           env.metrics,
		Clock:             env.clock.Now,
	})
	adminDeps := AdminDependencies{AccountRepo: env.accounts, Dispatcher: dispatcher, Clock: env.clock.Now}
	env.admin = NewAccountService(adminDeps)
	env.sellers = NewSellerService(adminDeps, env.metrics)
	return env
}

func (e *testEnv) registerBuyer(t *testing.T, email string) *domain.Account {
	t.Helper()
	session, err := e.auth.RegisterBuyer(context.Background(), "Buyer", email, testPassword)
	require.NoError(t, err)
	return session.Account
}

func (e *testEnv) registerSeller(t *testing.T, email string) *domain.Account {
	t.Helper()
	session, err := e.auth.RegisterSeller(context.Background(), "Seller", email, testPassword, "Shop")
	require.NoError(t, err)
	return session.Account
}

func (e *testEnv) bootstrapAdmin(t *testing.T) *domain.Account {
	t.Helper()
	admin, err := e.auth.EnsureAdmin(context.Background(), "Admin", "admin@example.com", testPassword)
	require.NoError(t, err)
	return admin
}
