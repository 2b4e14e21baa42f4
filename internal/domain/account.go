package domain

import (
	"strings"
	"time"
)

// AccountKind separates buyers, sellers and marketplace administrators.
type AccountKind string

const (
	AccountKindBuyer  AccountKind = "BUYER"
	AccountKindSeller AccountKind = "SELLER"
	AccountKindAdmin  AccountKind = "ADMIN"
)

// Valid reports whether k is a known kind.
func (k AccountKind) Valid() bool {
	switch k {
	case AccountKindBuyer, AccountKindSeller, AccountKindAdmin:
		return true
	}
	return false
}

// Account is the credential-bearing record shared by every marketplace participant.
type Account struct {
	ID          string
	Kind        AccountKind
	Name        string
	Email       string
	Password    Credential `json:"-"`
	Login       LoginState
	Active      bool
	LastLoginAt *time.Time
	Seller      *SellerProfile
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SellerProfile holds seller-only attributes.
type SellerProfile struct {
	StoreName    string
	Verification Verification
}

// NewAccount builds an active account with a plaintext password pending the hashing gate.
func NewAccount(kind AccountKind, name, email, password string) *Account {
	acc := &Account{
		Kind:   kind,
		Name:   strings.TrimSpace(name),
		Email:  NormalizeEmail(email),
		Active: true,
	}
	acc.Password.Set(password)
	return acc
}

// NewSellerAccount builds a seller awaiting verification.
func NewSellerAccount(name, email, password, storeName string) *Account {
	acc := NewAccount(AccountKindSeller, name, email, password)
	acc.Seller = &SellerProfile{
		StoreName:    strings.TrimSpace(storeName),
		Verification: Verification{Status: VerificationPending},
	}
	return acc
}

// IsSeller reports whether the account carries a seller profile.
func (a *Account) IsSeller() bool {
	return a != nil && a.Kind == AccountKindSeller && a.Seller != nil
}

// CanParticipate reports whether a seller may list and sell on the marketplace.
func (a *Account) CanParticipate() bool {
	return a.IsSeller() && a.Active && a.Seller.Verification.Status == VerificationVerified
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
