package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
)

// AccountsHandler serves the caller's own account.
type AccountsHandler struct{}

// NewAccountsHandler constructs handler.
func NewAccountsHandler() *AccountsHandler {
	return &AccountsHandler{}
}

// Me handles GET /accounts/me.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(p.Account)})
}
