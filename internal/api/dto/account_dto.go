package dto

import (
	"time"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// AccountResponse is the public view of an account. It never carries credentials.
type AccountResponse struct {
	ID          string             `json:"id"`
	Kind        domain.AccountKind `json:"kind"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Active      bool               `json:"active"`
	LastLoginAt *time.Time         `json:"last_login_at,omitempty"`
	Seller      *SellerResponse    `json:"seller,omitempty"`
	Lockout     *LockoutResponse   `json:"lockout,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// SellerResponse describes the seller profile and its verification.
type SellerResponse struct {
	StoreName    string               `json:"store_name"`
	Verification VerificationResponse `json:"verification"`
	CanSell      bool                 `json:"can_sell"`
	Legacy       domain.LegacyFlags   `json:"legacy"`
}

// VerificationResponse mirrors domain.Verification.
type VerificationResponse struct {
	Status    domain.VerificationStatus `json:"status"`
	Reason    string                    `json:"reason,omitempty"`
	UpdatedAt *time.Time                `json:"updated_at,omitempty"`
	UpdatedBy string                    `json:"updated_by,omitempty"`
}

// LockoutResponse exposes lockout state to administrators.
type LockoutResponse struct {
	Attempts  int        `json:"attempts"`
	Locked    bool       `json:"locked"`
	LockUntil *time.Time `json:"lock_until,omitempty"`
}

// VerificationDecisionRequest carries the reason for reject and suspend.
type VerificationDecisionRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// NewAccountResponse maps an account for its owner.
func NewAccountResponse(a *domain.Account) AccountResponse {
	resp := AccountResponse{
		ID:          a.ID,
		Kind:        a.Kind,
		Name:        a.Name,
		Email:       a.Email,
		Active:      a.Active,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.IsSeller() {
		v := a.Seller.Verification
		resp.Seller = &SellerResponse{
			StoreName: a.Seller.StoreName,
			Verification: VerificationResponse{
				Status:    v.Status,
				Reason:    v.Reason,
				UpdatedAt: v.UpdatedAt,
				UpdatedBy: v.UpdatedBy,
			},
			CanSell: a.CanParticipate(),
			Legacy:  domain.Legacy(v, a.Active),
		}
	}
	return resp
}

// NewAdminAccountResponse adds lockout state for administrators.
func NewAdminAccountResponse(a *domain.Account, policy domain.LockoutPolicy, now time.Time) AccountResponse {
	resp := NewAccountResponse(a)
	resp.Lockout = &LockoutResponse{
		Attempts:  a.Login.Attempts,
		Locked:    policy.IsLocked(a.Login, now),
		LockUntil: a.Login.LockUntil,
	}
	return resp
}
