package domain

import (
	"fmt"
	"strings"
	"time"
)

// VerificationStatus is the business approval state of a seller.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationVerified  VerificationStatus = "verified"
	VerificationRejected  VerificationStatus = "rejected"
	VerificationSuspended VerificationStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected, VerificationSuspended:
		return true
	}
	return false
}

// Verification is the single source of truth for seller approval.
// Reason is only meaningful for rejected and suspended.
type Verification struct {
	Status    VerificationStatus
	Reason    string
	UpdatedAt *time.Time
	UpdatedBy string
}

var allowedTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationPending:   {VerificationVerified, VerificationRejected, VerificationSuspended},
	VerificationVerified:  {VerificationSuspended},
	VerificationRejected:  {VerificationPending, VerificationSuspended},
	VerificationSuspended: {VerificationVerified},
}

// CanTransition reports whether from -> to is part of the workflow.
func CanTransition(from, to VerificationStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition returns the verification after moving to status.
// Rejections and suspensions require a reason.
func (v Verification) Transition(to VerificationStatus, reason, actorID string, at time.Time) (Verification, error) {
	if !to.Valid() {
		return v, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(v.Status, to) {
		return v, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, to)
	}
	reason = strings.TrimSpace(reason)
	if (to == VerificationRejected || to == VerificationSuspended) && reason == "" {
		return v, fmt.Errorf("%w: reason required for %s", ErrInvalidTransition, to)
	}
	if to == VerificationVerified || to == VerificationPending {
		reason = ""
	}
	stamp := at.UTC()
	return Verification{Status: to, Reason: reason, UpdatedAt: &stamp, UpdatedBy: actorID}, nil
}

// LegacyFlags is the read-only projection of the old overlapping seller fields.
type LegacyFlags struct {
	Status             string             `json:"status"`
	IsVerified         bool               `json:"is_verified"`
	IsActive           bool               `json:"is_active"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// Legacy derives the old flag set from verification plus the active switch.
func Legacy(v Verification, active bool) LegacyFlags {
	status := "inactive"
	switch {
	case v.Status == VerificationSuspended:
		status = "suspended"
	case active:
		status = "active"
	}
	return LegacyFlags{
		Status:             status,
		IsVerified:         v.Status == VerificationVerified,
		IsActive:           active,
		VerificationStatus: v.Status,
	}
}
