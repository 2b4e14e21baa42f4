package handlers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	"github.com/spec-kit/marketplace-accounts/internal/service"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

const maxPageSize = 200

// AdminHandler exposes administrator account and verification endpoints.
type AdminHandler struct {
	accounts *service.AccountService
	sellers  *service.SellerService
	policy   domain.LockoutPolicy
	validate *validator.Validate
	now      func() time.Time
}

// NewAdminHandler constructs handler.
func NewAdminHandler(accounts *service.AccountService, sellers *service.SellerService, policy domain.LockoutPolicy, validate *validator.Validate) *AdminHandler {
	if validate == nil {
		validate = NewValidator()
	}
	return &AdminHandler{accounts: accounts, sellers: sellers, policy: policy, validate: validate, now: time.Now}
}

// ListSellers handles GET /admin/sellers?status=&limit=&offset=.
func (h *AdminHandler) ListSellers(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	filters := service.SellerListFilters{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if filters.Limit <= 0 || filters.Limit > maxPageSize || filters.Offset < 0 {
		return apperrors.NewValidationError("invalid pagination", map[string]any{"max_limit": maxPageSize})
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.VerificationStatus(raw)
		if !status.Valid() {
			return apperrors.NewValidationError("unknown verification status", map[string]any{"status": raw})
		}
		filters.Status = &status
	}

	sellers, err := h.sellers.ListSellers(c.UserContext(), p.Account, filters)
	if err != nil {
		return mapServiceError(err)
	}

	now := h.now()
	items := make([]dto.AccountResponse, 0, len(sellers))
	for i := range sellers {
		items = append(items, dto.NewAdminAccountResponse(&sellers[i], h.policy, now))
	}
	return c.JSON(fiber.Map{
		"data": items,
		"meta": fiber.Map{"limit": filters.Limit, "offset": filters.Offset, "count": len(items)},
	})
}

// GetAccount handles GET /admin/accounts/:id.
func (h *AdminHandler) GetAccount(c *fiber.Ctx) error {
	return h.accountAction(c, h.accounts.GetAccount)
}

// Unlock handles POST /admin/accounts/:id/unlock.
func (h *AdminHandler) Unlock(c *fiber.Ctx) error {
	return h.accountAction(c, h.accounts.Unlock)
}

// Activate handles POST /admin/accounts/:id/activate.
func (h *AdminHandler) Activate(c *fiber.Ctx) error {
	return h.accountAction(c, func(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error) {
		return h.accounts.SetActive(ctx, actor, id, true)
	})
}

// Deactivate handles POST /admin/accounts/:id/deactivate.
func (h *AdminHandler) Deactivate(c *fiber.Ctx) error {
	return h.accountAction(c, func(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error) {
		return h.accounts.SetActive(ctx, actor, id, false)
	})
}

// VerifySeller handles POST /admin/sellers/:id/verify.
func (h *AdminHandler) VerifySeller(c *fiber.Ctx) error {
	return h.accountAction(c, h.sellers.Verify)
}

// ReinstateSeller handles POST /admin/sellers/:id/reinstate.
func (h *AdminHandler) ReinstateSeller(c *fiber.Ctx) error {
	return h.accountAction(c, h.sellers.Reinstate)
}

// RejectSeller handles POST /admin/sellers/:id/reject.
func (h *AdminHandler) RejectSeller(c *fiber.Ctx) error {
	return h.decision(c, h.sellers.Reject)
}

// SuspendSeller handles POST /admin/sellers/:id/suspend.
func (h *AdminHandler) SuspendSeller(c *fiber.Ctx) error {
	return h.decision(c, h.sellers.Suspend)
}

func (h *AdminHandler) decision(c *fiber.Ctx, apply func(context.Context, *domain.Account, string, string) (*domain.Account, error)) error {
	var req dto.VerificationDecisionRequest
	if err := bindRequest(c, h.validate, &req); err != nil {
		return err
	}
	return h.accountAction(c, func(ctx context.Context, actor *domain.Account, id string) (*domain.Account, error) {
		return apply(ctx, actor, id, req.Reason)
	})
}

func (h *AdminHandler) accountAction(c *fiber.Ctx, apply func(context.Context, *domain.Account, string) (*domain.Account, error)) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := accountIDParam(c)
	if err != nil {
		return err
	}

	account, err := apply(c.UserContext(), p.Account, id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewAdminAccountResponse(account, h.policy, h.now())})
}
