package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-accounts/internal/api/dto"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
	apperrors "github.com/spec-kit/marketplace-accounts/pkg/util"
)

func TestMapServiceError(t *testing.T) {
	until := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{&domain.LockedError{Until: until}, http.StatusLocked, "ACCOUNT_LOCKED"},
		{domain.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
		{domain.ErrEmailTaken, http.StatusConflict, "CONFLICT"},
		{fmt.Errorf("%w: pending -> pending", domain.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
		{domain.ErrNotSeller, http.StatusConflict, "NOT_SELLER"},
		{domain.ErrResetTokenInvalid, http.StatusBadRequest, "RESET_TOKEN_INVALID"},
		{domain.ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("hash password: %w", domain.ErrPasswordTooLong), http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{apperrors.NewForbidden("admin role required"), http.StatusForbidden, "FORBIDDEN"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			mapped := apperrors.ToDomainError(mapServiceError(tc.err))
			assert.Equal(t, tc.status, mapped.HTTPStatus)
			assert.Equal(t, tc.code, mapped.Code)
		})
	}

	locked := apperrors.ToDomainError(mapServiceError(&domain.LockedError{Until: until}))
	assert.Equal(t, "2024-03-01T14:00:00Z", locked.Details["locked_until"])
	assert.Nil(t, mapServiceError(nil))
}

func TestValidator_PasswordLimitCountsBytes(t *testing.T) {
	v := NewValidator()
	req := func(password string) dto.BuyerRegisterRequest {
		return dto.BuyerRegisterRequest{Name: "Bob", Email: "bob@example.com", Password: password}
	}

	assert.NoError(t, v.Struct(req(strings.Repeat("x", 72))))
	assert.NoError(t, v.Struct(req(strings.Repeat("é", 36))))

	for _, password := range []string{strings.Repeat("x", 73), strings.Repeat("é", 40)} {
		err := v.Struct(req(password))
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		require.Len(t, verrs, 1)
		assert.Equal(t, "password", verrs[0].Field())
		assert.Equal(t, "maxbytes", verrs[0].Tag())
		assert.Equal(t, "must be at most 72 bytes", validationMessage(verrs[0]))
	}
}
