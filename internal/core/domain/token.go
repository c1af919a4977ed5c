package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind is the purpose an authorization token was minted for.
type TokenKind string

const (
	TokenKindTransfer      TokenKind = "TRANSFER"
	TokenKindResetPassword TokenKind = "RESET_PASSWORD"
	TokenKindPayInvoice    TokenKind = "PAY_INVOICE"
	TokenKindRefresh       TokenKind = "REFRESH"
	TokenKindAdminRefresh  TokenKind = "ADMIN_REFRESH"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	switch k {
	case TokenKindTransfer, TokenKindResetPassword, TokenKindPayInvoice,
		TokenKindRefresh, TokenKindAdminRefresh:
		return true
	}
	return false
}

// AuthToken is an opaque authorization token. Tokens are never deleted;
// they leave circulation by expiry or blacklisting.
type AuthToken struct {
	ID            uuid.UUID  `json:"id"`
	Value         string     `json:"-"`
	Kind          TokenKind  `json:"kind"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	// Scope narrows a token to one resource, e.g. the invoice a
	// PAY_INVOICE OTP was requested for. Empty means unscoped.
	Scope         string     `json:"scope,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	IsBlacklisted bool       `json:"is_blacklisted"`
	CreatedAt     time.Time  `json:"created_at"`
	ConsumedAt    *time.Time `json:"consumed_at,omitempty"`
}

// IsExpired reports whether the token is past its absolute expiry at now.
func (t *AuthToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsable reports whether the token may still be consumed or validated at now.
func (t *AuthToken) IsUsable(now time.Time) bool {
	return !t.IsBlacklisted && !t.IsExpired(now)
}

// Role identifies the kind of principal a session belongs to.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleEmployee Role = "EMPLOYEE"
)

// RefreshKind returns the refresh token kind used for sessions of this role.
func (r Role) RefreshKind() TokenKind {
	if r == RoleEmployee {
		return TokenKindAdminRefresh
	}
	return TokenKindRefresh
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleEmployee
}
