package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// AuthHandler exposes registration, login and credential endpoints.
type AuthHandler struct {
	auth             *service.AuthService
	validate         *validator.Validate
	exposeResetToken bool
}

// NewAuthHandler constructs handler. exposeResetToken returns reset tokens in the
// response body, which is only meant for development without a mail relay.
func NewAuthHandler(authService *service.AuthService, validate *validator.Validate, exposeResetToken bool) *AuthHandler {
	if validate == nil {
		validate = NewValidator()
	}
	return &AuthHandler{auth: authService, validate: validate, exposeResetToken: exposeResetToken}
}

// RegisterBuyer handles POST /auth/buyers/register.
func (h *AuthHandler) RegisterBuyer(c *fiber.Ctx) error {
	var req dto.BuyerRegisterRequest
	if err := bindRequest(c, h.validate, &req); err != nil {
		return err
	}

	session, err := h.auth.RegisterBuyer(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(sessionResponse(session))
}

// RegisterSeller handles POST /auth/sellers/register.
func (h *AuthHandler) RegisterSeller(c *fiber.Ctx) error {
	var req dto.SellerRegisterRequest
	if err := bindRequest(c, h.validate, &req); err != nil {
		return err
	}

	session, err := h.auth.RegisterSeller(c.UserContext(), req.Name, req.Email, req.Password, req.StoreName)
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(sessionResponse(session))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bindRequest(c, h.validate, &req); err != nil {
		return err
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(sessionResponse(session))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), p.Claims); err != nil {
		return mapServiceError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.PasswordChangeRequest
	if err := bindRequest(c, h.validate, &req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), p.Account.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return mapServiceError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// RequestPasswordReset handles POST /auth/password/reset/request.
// The response is identical whether or not the email is registered.
func (h *AuthHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := bindRequest(c, h.validate, &req); err != nil {
		return err
	}

	token, err := h.auth.RequestPasswordReset(c.UserContext(), req.Email)
	if err != nil {
		return mapServiceError(err)
	}

	data := fiber.Map{"status": "if the account exists, a reset link has been sent"}
	if h.exposeResetToken && token != nil {
		data["reset_token"] = token.Token
		data["expires_at"] = token.ExpiresAt
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": data})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := bindRequest(c, h.validate, &req); err != nil {
		return err
	}

	if err := h.auth.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return mapServiceError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func sessionResponse(session *service.Session) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"account": dto.NewAccountResponse(session.Account),
			"auth": dto.AuthResponse{
				Token:     session.AccessToken,
				TokenType: "Bearer",
				ExpiresAt: session.Token.ExpiresAt,
			},
		},
	}
}
