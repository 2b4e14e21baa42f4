package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/marketplace-accounts/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "AdminPassword1!"
	userPassword  = "Password123!"
)

type apiResponse struct {
	status int
	body   map[string]any
	raw    string
}

func (r apiResponse) data() map[string]any {
	d, _ := r.body["data"].(map[string]any)
	return d
}

func (r apiResponse) errorCode() string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func newTestApp(t *testing.T) *fiber.App {
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
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	hasher := auth.NewHasher(bcrypt.MinCost)
	policy := service.LockoutPolicyFromConfig(cfg.Lockout)
	accounts := repository.NewMemoryAccountRepository(hasher, policy)
	revocations := auth.NewMemoryRevocationStore()
	dispatcher := events.NewInMemoryDispatcher()

	authService := service.NewAuthService(cfg, service.AuthDependencies{
		AccountRepo:       accounts,
		PasswordResetRepo: repository.NewMemoryPasswordResetRepository(),
		Revocations:       revocations,
		Hasher:            hasher,
		Dispatcher:        dispatcher,
		Metrics:           metrics,
		Logger:            logger,
	})
	_, err := authService.EnsureAdmin(t.Context(), "Admin", adminEmail, adminPassword)
	require.NoError(t, err)

	adminDeps := service.AdminDependencies{AccountRepo: accounts, Dispatcher: dispatcher, Logger: logger}
	sellerService := service.NewSellerService(adminDeps, metrics)
	validate := handlers.NewValidator()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("marketplace-accounts", "test", map[string]handlers.Pinger{"postgres": nil}),
		Auth:           handlers.NewAuthHandler(authService, validate, true),
		Accounts:       handlers.NewAccountsHandler(),
		Sellers:        handlers.NewSellersHandler(sellerService),
		Admin:          handlers.NewAdminHandler(service.NewAccountService(adminDeps), sellerService, policy, validate),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), accounts, revocations, logger),
		Metrics:        metrics,
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) apiResponse {
	t.Helper()

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := apiResponse{status: resp.StatusCode, raw: string(raw)}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func tokenOf(t *testing.T, resp apiResponse) string {
	t.Helper()
	authData, ok := resp.data()["auth"].(map[string]any)
	require.True(t, ok, resp.raw)
	token, _ := authData["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func accountIDOf(t *testing.T, resp apiResponse) string {
	t.Helper()
	account, ok := resp.data()["account"].(map[string]any)
	require.True(t, ok, resp.raw)
	return account["id"].(string)
}

func adminToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{"email": adminEmail, "password": adminPassword})
	require.Equal(t, fiber.StatusOK, resp.status, resp.raw)
	return tokenOf(t, resp)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	live := doJSON(t, app, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, live.status)

	ready := doJSON(t, app, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, ready.status)
	assert.Equal(t, "disabled", ready.body["dependencies"].(map[string]any)["postgres"])

	doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	metrics := doJSON(t, app, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, metrics.status)
	assert.Contains(t, metrics.raw, `auth_login_attempts_total{result="failure"} 1`)
}

func TestRegisterAndMe(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Ada", "email": "Ada@Example.com", "password": userPassword,
	})
	require.Equal(t, fiber.StatusCreated, resp.status, resp.raw)
	assert.NotContains(t, resp.raw, "password")
	assert.NotContains(t, resp.raw, "$2a$")
	token := tokenOf(t, resp)

	me := doJSON(t, app, fiber.MethodGet, "/accounts/me", token, nil)
	require.Equal(t, fiber.StatusOK, me.status, me.raw)
	assert.Equal(t, "ada@example.com", me.data()["email"])
	assert.Equal(t, "BUYER", me.data()["kind"])
	assert.NotContains(t, me.raw, "$2a$")

	dup := doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Ada", "email": "ada@example.com", "password": userPassword,
	})
	assert.Equal(t, fiber.StatusConflict, dup.status)

	unauth := doJSON(t, app, fiber.MethodGet, "/accounts/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, unauth.status)
}

func TestRegisterValidation(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, fiber.MethodPost, "/auth/sellers/register", "", map[string]string{
		"name": "Shop", "email": "not-an-email", "password": "short",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())
	details := resp.body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "store_name")
}

func TestLoginLockout(t *testing.T) {
	app := newTestApp(t)
	doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": userPassword,
	})

	wrong := map[string]string{"email": "bob@example.com", "password": "wrong-password"}
	for i := 0; i < 5; i++ {
		resp := doJSON(t, app, fiber.MethodPost, "/auth/login", "", wrong)
		require.Equal(t, fiber.StatusUnauthorized, resp.status)
		assert.Equal(t, "INVALID_CREDENTIALS", resp.errorCode())
	}

	locked := doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "bob@example.com", "password": userPassword})
	require.Equal(t, fiber.StatusLocked, locked.status)
	assert.Equal(t, "ACCOUNT_LOCKED", locked.errorCode())
	assert.Contains(t, locked.body["error"].(map[string]any)["details"], "locked_until")
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t)
	resp := doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Cy", "email": "cy@example.com", "password": userPassword,
	})
	token := tokenOf(t, resp)

	out := doJSON(t, app, fiber.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, fiber.StatusNoContent, out.status)

	me := doJSON(t, app, fiber.MethodGet, "/accounts/me", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, me.status)
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Di", "email": "di@example.com", "password": userPassword,
	})

	unknown := doJSON(t, app, fiber.MethodPost, "/auth/password/reset/request", "", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, fiber.StatusAccepted, unknown.status)
	assert.NotContains(t, unknown.data(), "reset_token")

	req := doJSON(t, app, fiber.MethodPost, "/auth/password/reset/request", "", map[string]string{"email": "di@example.com"})
	require.Equal(t, fiber.StatusAccepted, req.status)
	resetToken, _ := req.data()["reset_token"].(string)
	require.NotEmpty(t, resetToken)

	confirm := doJSON(t, app, fiber.MethodPost, "/auth/password/reset/confirm", "", map[string]string{
		"token": resetToken, "new_password": "BrandNew456!",
	})
	require.Equal(t, fiber.StatusNoContent, confirm.status, confirm.raw)

	reuse := doJSON(t, app, fiber.MethodPost, "/auth/password/reset/confirm", "", map[string]string{
		"token": resetToken, "new_password": "BrandNew789!",
	})
	assert.Equal(t, fiber.StatusBadRequest, reuse.status)
	assert.Equal(t, "RESET_TOKEN_INVALID", reuse.errorCode())

	login := doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "di@example.com", "password": "BrandNew456!"})
	assert.Equal(t, fiber.StatusOK, login.status)
}

func TestMultibytePasswordRejectedWithoutSpendingToken(t *testing.T) {
	app := newTestApp(t)
	overlong := strings.Repeat("é", 40)

	reg := doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Eve", "email": "eve@example.com", "password": overlong,
	})
	require.Equal(t, fiber.StatusBadRequest, reg.status, reg.raw)
	assert.Equal(t, "VALIDATION_FAILED", reg.errorCode())
	details := reg.body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "must be at most 72 bytes", details["password"])

	reg = doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Eve", "email": "eve@example.com", "password": userPassword,
	})
	require.Equal(t, fiber.StatusCreated, reg.status, reg.raw)

	req := doJSON(t, app, fiber.MethodPost, "/auth/password/reset/request", "", map[string]string{"email": "eve@example.com"})
	resetToken, _ := req.data()["reset_token"].(string)
	require.NotEmpty(t, resetToken)

	rejected := doJSON(t, app, fiber.MethodPost, "/auth/password/reset/confirm", "", map[string]string{
		"token": resetToken, "new_password": overlong,
	})
	require.Equal(t, fiber.StatusBadRequest, rejected.status, rejected.raw)
	assert.Equal(t, "VALIDATION_FAILED", rejected.errorCode())

	confirm := doJSON(t, app, fiber.MethodPost, "/auth/password/reset/confirm", "", map[string]string{
		"token": resetToken, "new_password": "BrandNew456!",
	})
	assert.Equal(t, fiber.StatusNoContent, confirm.status, confirm.raw)
}

func TestSellerVerificationEndpoints(t *testing.T) {
	app := newTestApp(t)
	admin := adminToken(t, app)

	reg := doJSON(t, app, fiber.MethodPost, "/auth/sellers/register", "", map[string]string{
		"name": "Eve", "email": "eve@example.com", "password": userPassword, "store_name": "Eve's Goods",
	})
	require.Equal(t, fiber.StatusCreated, reg.status, reg.raw)
	sellerToken := tokenOf(t, reg)
	sellerID := accountIDOf(t, reg)

	mine := doJSON(t, app, fiber.MethodGet, "/sellers/me/verification", sellerToken, nil)
	require.Equal(t, fiber.StatusOK, mine.status, mine.raw)
	assert.Equal(t, "pending", mine.data()["verification"].(map[string]any)["status"])
	legacy := mine.data()["legacy"].(map[string]any)
	assert.Equal(t, "active", legacy["status"])
	assert.Equal(t, false, legacy["is_verified"])

	forbidden := doJSON(t, app, fiber.MethodPost, "/admin/sellers/"+sellerID+"/verify", sellerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, forbidden.status)

	noReason := doJSON(t, app, fiber.MethodPost, "/admin/sellers/"+sellerID+"/reject", admin, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, noReason.status)

	rejected := doJSON(t, app, fiber.MethodPost, "/admin/sellers/"+sellerID+"/reject", admin, map[string]string{"reason": "missing tax id"})
	require.Equal(t, fiber.StatusOK, rejected.status, rejected.raw)

	invalid := doJSON(t, app, fiber.MethodPost, "/admin/sellers/"+sellerID+"/verify", admin, nil)
	assert.Equal(t, fiber.StatusConflict, invalid.status)
	assert.Equal(t, "INVALID_TRANSITION", invalid.errorCode())

	resubmit := doJSON(t, app, fiber.MethodPost, "/sellers/me/verification/resubmit", sellerToken, nil)
	require.Equal(t, fiber.StatusOK, resubmit.status, resubmit.raw)

	queue := doJSON(t, app, fiber.MethodGet, "/admin/sellers?status=pending", admin, nil)
	require.Equal(t, fiber.StatusOK, queue.status, queue.raw)
	items := queue.body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, sellerID, items[0].(map[string]any)["id"])

	verified := doJSON(t, app, fiber.MethodPost, "/admin/sellers/"+sellerID+"/verify", admin, nil)
	require.Equal(t, fiber.StatusOK, verified.status, verified.raw)
	seller := verified.data()["seller"].(map[string]any)
	assert.Equal(t, true, seller["can_sell"])

	badStatus := doJSON(t, app, fiber.MethodGet, "/admin/sellers?status=approved", admin, nil)
	assert.Equal(t, fiber.StatusBadRequest, badStatus.status)

	notFound := doJSON(t, app, fiber.MethodGet, "/admin/accounts/not-a-uuid", admin, nil)
	assert.Equal(t, fiber.StatusNotFound, notFound.status)
}

func TestAdminAccountEndpoints(t *testing.T) {
	app := newTestApp(t)
	admin := adminToken(t, app)

	reg := doJSON(t, app, fiber.MethodPost, "/auth/buyers/register", "", map[string]string{
		"name": "Fay", "email": "fay@example.com", "password": userPassword,
	})
	buyerID := accountIDOf(t, reg)
	buyerToken := tokenOf(t, reg)

	for i := 0; i < 5; i++ {
		doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "fay@example.com", "password": "nope-nope"})
	}
	view := doJSON(t, app, fiber.MethodGet, "/admin/accounts/"+buyerID, admin, nil)
	require.Equal(t, fiber.StatusOK, view.status, view.raw)
	lockout := view.data()["lockout"].(map[string]any)
	assert.Equal(t, true, lockout["locked"])
	assert.Equal(t, float64(5), lockout["attempts"])

	unlocked := doJSON(t, app, fiber.MethodPost, "/admin/accounts/"+buyerID+"/unlock", admin, nil)
	require.Equal(t, fiber.StatusOK, unlocked.status, unlocked.raw)
	assert.Equal(t, false, unlocked.data()["lockout"].(map[string]any)["locked"])

	deactivated := doJSON(t, app, fiber.MethodPost, "/admin/accounts/"+buyerID+"/deactivate", admin, nil)
	require.Equal(t, fiber.StatusOK, deactivated.status)
	assert.Equal(t, false, deactivated.data()["active"])

	me := doJSON(t, app, fiber.MethodGet, "/accounts/me", buyerToken, nil)
	assert.Equal(t, fiber.StatusForbidden, me.status)

	login := doJSON(t, app, fiber.MethodPost, "/auth/login", "", map[string]string{"email": "fay@example.com", "password": userPassword})
	assert.Equal(t, fiber.StatusForbidden, login.status)
	assert.Equal(t, "ACCOUNT_INACTIVE", login.errorCode())

	activated := doJSON(t, app, fiber.MethodPost, "/admin/accounts/"+buyerID+"/activate", admin, nil)
	require.Equal(t, fiber.StatusOK, activated.status)
	assert.Equal(t, true, activated.data()["active"])
}
