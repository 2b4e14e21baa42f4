package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
)

// Session is the result of a successful registration or login.
type Session struct {
	Account     *domain.Account
	AccessToken string
	Token       domain.Token
}

// AuthService coordinates registration, login and credential changes.
type AuthService struct {
	accounts   repository.AccountRepository
	resets     repository.PasswordResetRepository
	revoked    auth.RevocationStore
	hasher     *auth.Hasher
	tokenMgr   *auth.TokenManager
	policy     domain.LockoutPolicy
	resetTTL   time.Duration
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	decoyHash  string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	AccountRepo       repository.AccountRepository
	PasswordResetRepo repository.PasswordResetRepository
	Revocations       auth.RevocationStore
	Hasher            *auth.Hasher
	Dispatcher        events.Dispatcher
	Metrics           *observability.Metrics
	Logger            *zap.Logger
	Clock             func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	s := &AuthService{
		accounts:   deps.AccountRepo,
		resets:     deps.PasswordResetRepo,
		revoked:    deps.Revocations,
		hasher:     deps.Hasher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		policy:     LockoutPolicyFromConfig(cfg.Lockout),
		resetTTL:   cfg.Auth.PasswordResetTTL(),
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.hasher == nil {
		s.hasher = auth.NewHasher(cfg.Auth.BcryptCost)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.tokenMgr.WithClock(s.now)
	if s.revoked == nil {
		s.revoked = auth.NewMemoryRevocationStore()
	}
	// unknown emails still pay for one bcrypt comparison
	if decoy, err := s.hasher.Hash(uuid.NewString()); err == nil {
		s.decoyHash = decoy
	}
	return s
}

// LockoutPolicyFromConfig maps config onto the domain policy.
func LockoutPolicyFromConfig(cfg config.LockoutConfig) domain.LockoutPolicy {
	return domain.LockoutPolicy{MaxAttempts: cfg.MaxAttempts, LockDuration: cfg.LockDuration()}
}

// RegisterBuyer creates a buyer account and signs it in.
func (s *AuthService) RegisterBuyer(ctx context.Context, name, email, password string) (*Session, error) {
	return s.register(ctx, domain.NewAccount(domain.AccountKindBuyer, name, email, password))
}

// RegisterSeller creates a seller account pending verification and signs it in.
func (s *AuthService) RegisterSeller(ctx context.Context, name, email, password, storeName string) (*Session, error) {
	return s.register(ctx, domain.NewSellerAccount(name, email, password, storeName))
}

func (s *AuthService) register(ctx context.Context, account *domain.Account) (*Session, error) {
	if _, err := s.accounts.GetByEmail(ctx, account.Email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	s.logger.Info("account registered", zap.String("account_id", account.ID), zap.String("kind", string(account.Kind)))
	s.publish(ctx, events.EventAccountRegistered, account.ID, "", events.AccountRegisteredPayload{
		Kind:  account.Kind,
		Email: account.Email,
	})
	return s.issue(account)
}

// Login authenticates by email and password under the lockout policy.
// A locked account is refused before the password is examined.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.hasher.Compare(s.decoyHash, password)
		s.metrics.RecordLogin(observability.LoginFailed)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if s.policy.IsLocked(account.Login, now) {
		s.metrics.RecordLogin(observability.LoginLocked)
		return nil, &domain.LockedError{Until: *account.Login.LockUntil}
	}

	if !s.hasher.Compare(account.Password.Hash(), password) {
		s.metrics.RecordLogin(observability.LoginFailed)
		if err := s.recordFailure(ctx, account, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidCredentials
	}

	if !account.Active {
		s.metrics.RecordLogin(observability.LoginInactive)
		return nil, domain.ErrAccountInactive
	}

	if err := s.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	account.Login = s.policy.RegisterSuccess()
	account.LastLoginAt = &now
	s.metrics.RecordLogin(observability.LoginSucceeded)
	return s.issue(account)
}

func (s *AuthService) recordFailure(ctx context.Context, account *domain.Account, now time.Time) error {
	state, err := s.accounts.IncrementLoginAttempts(ctx, account.ID, now)
	if err != nil {
		return fmt.Errorf("increment login attempts: %w", err)
	}
	account.Login = state

	s.logger.Info("login failed", zap.String("account_id", account.ID), zap.Int("attempts", state.Attempts))
	s.publish(ctx, events.EventLoginFailed, account.ID, "", events.LoginFailedPayload{
		Attempts:  state.Attempts,
		Remaining: s.policy.Remaining(state),
	})

	// the lock is written exactly when the counter reaches the threshold
	if state.LockUntil != nil && state.Attempts == s.policy.MaxAttempts {
		s.metrics.RecordLockout()
		s.logger.Warn("account locked",
			zap.String("account_id", account.ID),
			zap.Int("attempts", state.Attempts),
			zap.Time("lock_until", *state.LockUntil))
		s.publish(ctx, events.EventAccountLocked, account.ID, "", events.AccountLockedPayload{
			Attempts:  state.Attempts,
			LockUntil: *state.LockUntil,
		})
	}
	return nil
}

// Logout revokes the presented token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}
	ttl := claims.Expiry().Sub(s.now())
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(account.Password.Hash(), currentPassword) {
		return domain.ErrInvalidCredentials
	}
	credential, err := s.seal(newPassword)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, account.ID, credential, false)
}

// RequestPasswordReset persists a reset token for the account owning email.
// Unknown emails yield (nil, nil) so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token := &domain.PasswordResetToken{
		AccountID: account.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, err
	}
	s.logger.Info("password reset requested", zap.String("account_id", account.ID))
	s.publish(ctx, events.EventPasswordResetRequested, account.ID, "", events.PasswordResetRequestedPayload{
		Email:     account.Email,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
	return token, nil
}

// ConfirmPasswordReset consumes the reset token and updates password.
// The new password is hashed before the token is spent, so a rejected
// password leaves the token usable.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	token, err := s.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		return err
	}
	now := s.now()
	if !token.Usable(now) {
		return domain.ErrResetTokenInvalid
	}

	credential, err := s.seal(newPassword)
	if err != nil {
		return err
	}
	if err := s.resets.MarkUsed(ctx, token.ID, now); err != nil {
		return err
	}
	return s.setPassword(ctx, token.AccountID, credential, true)
}

func (s *AuthService) seal(password string) (domain.Credential, error) {
	credential := domain.NewCredential(password)
	if err := credential.Seal(s.hasher); err != nil {
		return domain.Credential{}, fmt.Errorf("hash password: %w", err)
	}
	return credential, nil
}

// setPassword stores a sealed credential and clears lockout state in one write.
func (s *AuthService) setPassword(ctx context.Context, accountID string, credential domain.Credential, viaReset bool) error {
	if err := s.accounts.SetPassword(ctx, accountID, credential); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("account_id", accountID), zap.Bool("via_reset", viaReset))
	s.publish(ctx, events.EventPasswordChanged, accountID, accountID, events.PasswordChangedPayload{ViaReset: viaReset})
	return nil
}

// EnsureAdmin creates the bootstrap administrator when it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.Account, error) {
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		if existing.Kind != domain.AccountKindAdmin {
			return nil, fmt.Errorf("bootstrap admin %s: %w", email, domain.ErrEmailTaken)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	admin := domain.NewAccount(domain.AccountKindAdmin, name, email, password)
	if err := s.accounts.Create(ctx, admin); err != nil {
		return nil, err
	}
	s.logger.Info("bootstrap admin created", zap.String("account_id", admin.ID))
	return admin, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(account *domain.Account) (*Session, error) {
	token, meta, err := s.tokenMgr.GenerateToken(account.ID, account.Kind)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, AccessToken: token, Token: meta}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, accountID, actorID string, payload any) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now(), eventType, accountID, actorID, payload)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, at time.Time, eventType events.EventType, accountID, actorID string, payload any) {
	if dispatcher == nil {
		return
	}
	err := dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
		ActorID:   actorID,
		Timestamp: at.UTC(),
		Payload:   payload,
	})
	if err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
