package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

// mapServiceError translates domain failures into API errors.
func mapServiceError(err error) error {
	var locked *domain.LockedError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &locked):
		return apperrors.NewLocked(locked.Until)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.NewDomainError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	case errors.Is(err, domain.ErrAccountInactive):
		return apperrors.NewDomainError("ACCOUNT_INACTIVE", "account is deactivated", http.StatusForbidden, nil)
	case errors.Is(err, domain.ErrEmailTaken):
		return apperrors.NewConflict("email already registered", nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		return apperrors.NewDomainError("INVALID_TRANSITION", err.Error(), http.StatusConflict, nil)
	case errors.Is(err, domain.ErrNotSeller):
		return apperrors.NewDomainError("NOT_SELLER", "account is not a seller", http.StatusConflict, nil)
	case errors.Is(err, domain.ErrResetTokenInvalid):
		return apperrors.NewDomainError("RESET_TOKEN_INVALID", "reset token is invalid, expired or used", http.StatusBadRequest, nil)
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperrors.NewNotFound("account", nil)
	case errors.Is(err, domain.ErrMissingCredential):
		return apperrors.NewValidationError("password required", nil)
	case errors.Is(err, domain.ErrPasswordTooLong):
		return apperrors.NewDomainError("VALIDATION_FAILED", "password too long", http.StatusUnprocessableEntity,
			map[string]any{"password": "must be at most " + strconv.Itoa(domain.MaxPasswordBytes) + " bytes"})
	}
	return apperrors.MapError(err)
}

// bindRequest parses the JSON body into req and runs struct validation.
func bindRequest(c *fiber.Ctx, v *validator.Validate, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.NewValidationError("validation failed", nil)
		}
		fields := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		return apperrors.NewValidationError("validation failed", fields)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "maxbytes":
		return "must be at most " + fe.Param() + " bytes"
	}
	return "is invalid"
}

// NewValidator returns a validator reporting JSON field names.
// It adds maxbytes, which bounds the UTF-8 byte length where max counts runes.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("maxbytes", maxBytes)
	return v
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// principal returns the authenticated caller or a 401.
func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p.Account == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}
