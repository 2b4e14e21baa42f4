package domain

import "time"

// Token describes an issued access token.
type Token struct {
	ID        string
	AccountID string
	Kind      AccountKind
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// PasswordResetToken is a single-use credential reset grant.
type PasswordResetToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still reset a password at now.
func (t *PasswordResetToken) Usable(now time.Time) bool {
	return t != nil && t.UsedAt == nil && now.Before(t.ExpiresAt)
}
