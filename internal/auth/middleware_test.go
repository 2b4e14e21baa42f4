package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

type MockAccountLoader struct {
	mock.Mock
}

func (m *MockAccountLoader) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) error {
	return errors.New("redis down")
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func newMiddlewareApp(mw *AuthMiddleware, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return errors.New("principal missing")
		}
		return c.SendString(p.Account.ID)
	})
	app.Get("/protected", handlers...)
	return app
}

func call(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	tokens := NewTokenManager("secret", 15*time.Minute)
	buyer := &domain.Account{ID: "buyer-1", Kind: domain.AccountKindBuyer, Active: true}
	inactive := &domain.Account{ID: "buyer-2", Kind: domain.AccountKindBuyer, Active: false}

	loader := new(MockAccountLoader)
	loader.On("GetByID", mock.Anything, "buyer-1").Return(buyer, nil)
	loader.On("GetByID", mock.Anything, "buyer-2").Return(inactive, nil)
	loader.On("GetByID", mock.Anything, "gone").Return(nil, domain.ErrAccountNotFound)

	revocations := NewMemoryRevocationStore()
	app := newMiddlewareApp(NewAuthMiddleware(tokens, loader, revocations, nil))

	valid, _, err := tokens.GenerateToken("buyer-1", domain.AccountKindBuyer)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call(t, app, valid))

	assert.Equal(t, http.StatusUnauthorized, call(t, app, ""))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "garbage"))

	wrongKind, _, err := tokens.GenerateToken("buyer-1", domain.AccountKindAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(t, app, wrongKind))

	deactivated, _, err := tokens.GenerateToken("buyer-2", domain.AccountKindBuyer)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, call(t, app, deactivated))

	deleted, _, err := tokens.GenerateToken("gone", domain.AccountKindBuyer)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call(t, app, deleted))

	revoked, meta, err := tokens.GenerateToken("buyer-1", domain.AccountKindBuyer)
	require.NoError(t, err)
	require.NoError(t, revocations.Revoke(context.Background(), meta.ID, time.Minute))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, revoked))
}

func TestAuthMiddleware_RevocationOutageFailsOpen(t *testing.T) {
	tokens := NewTokenManager("secret", 15*time.Minute)
	loader := new(MockAccountLoader)
	loader.On("GetByID", mock.Anything, "buyer-1").
		Return(&domain.Account{ID: "buyer-1", Kind: domain.AccountKindBuyer, Active: true}, nil)

	app := newMiddlewareApp(NewAuthMiddleware(tokens, loader, failingRevocations{}, nil))
	token, _, err := tokens.GenerateToken("buyer-1", domain.AccountKindBuyer)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, call(t, app, token))
	loader.AssertExpectations(t)
}

func TestRequireKind(t *testing.T) {
	tokens := NewTokenManager("secret", 15*time.Minute)
	loader := new(MockAccountLoader)
	loader.On("GetByID", mock.Anything, "seller-1").
		Return(&domain.Account{ID: "seller-1", Kind: domain.AccountKindSeller, Active: true}, nil)
	loader.On("GetByID", mock.Anything, "admin-1").
		Return(&domain.Account{ID: "admin-1", Kind: domain.AccountKindAdmin, Active: true}, nil)

	app := newMiddlewareApp(NewAuthMiddleware(tokens, loader, nil, nil), RequireAdmin())

	seller, _, err := tokens.GenerateToken("seller-1", domain.AccountKindSeller)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, call(t, app, seller))

	admin, _, err := tokens.GenerateToken("admin-1", domain.AccountKindAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call(t, app, admin))
}
