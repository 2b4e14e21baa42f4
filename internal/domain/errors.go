package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountInactive    = errors.New("account inactive")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidTransition  = errors.New("invalid verification transition")
	ErrNotSeller          = errors.New("account is not a seller")
	ErrUnsealedCredential = errors.New("credential holds plaintext")
	ErrMissingCredential  = errors.New("credential missing")
	ErrResetTokenInvalid  = errors.New("reset token expired or used")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
)

// LockedError reports a login refused because the account is locked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "account locked until " + e.Until.UTC().Format(time.RFC3339)
}

// Is matches ErrAccountLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
