package events

import (
	"time"

	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered         EventType = "account_registered"
	EventLoginFailed               EventType = "login_failed"
	EventAccountLocked             EventType = "account_locked"
	EventPasswordChanged           EventType = "password_changed"
	EventPasswordResetRequested    EventType = "password_reset_requested"
	EventAccountActivationChanged  EventType = "account_activation_changed"
	EventSellerVerificationChanged EventType = "seller_verification_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AccountRegisteredPayload payload.
type AccountRegisteredPayload struct {
	Kind  domain.AccountKind `json:"kind"`
	Email string             `json:"email"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Attempts  int `json:"attempts"`
	Remaining int `json:"remaining"`
}

// AccountLockedPayload payload.
type AccountLockedPayload struct {
	Attempts  int       `json:"attempts"`
	LockUntil time.Time `json:"lock_until"`
}

// PasswordChangedPayload payload.
type PasswordChangedPayload struct {
	ViaReset bool `json:"via_reset"`
}

// PasswordResetRequestedPayload carries what the reset email needs.
type PasswordResetRequestedPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountActivationChangedPayload payload.
type AccountActivationChangedPayload struct {
	Active bool `json:"active"`
}

// SellerVerificationChangedPayload payload.
type SellerVerificationChangedPayload struct {
	OldStatus domain.VerificationStatus `json:"old_status"`
	NewStatus domain.VerificationStatus `json:"new_status"`
	Reason    string                    `json:"reason,omitempty"`
}
