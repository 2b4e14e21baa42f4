package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/service"
)

// SellersHandler exposes a seller's view of its own verification.
type SellersHandler struct {
	sellers *service.SellerService
}

// NewSellersHandler constructs handler.
func NewSellersHandler(sellers *service.SellerService) *SellersHandler {
	return &SellersHandler{sellers: sellers}
}

// MyVerification handles GET /sellers/me/verification.
func (h *SellersHandler) MyVerification(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	seller, err := h.sellers.Verification(c.UserContext(), p.Account.ID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(seller).Seller})
}

// Resubmit handles POST /sellers/me/verification/resubmit.
func (h *SellersHandler) Resubmit(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	seller, err := h.sellers.Resubmit(c.UserContext(), p.Account)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(seller).Seller})
}
