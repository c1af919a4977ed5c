package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountNumberLength is the length of every account number on the interbank network.
const AccountNumberLength = 10

// Account is a customer's payment account. Its ID is the customer id.
type Account struct {
	ID            uuid.UUID `json:"id"`
	AccountNumber string    `json:"account_number"`
	DisplayName   string    `json:"display_name"`
	Balance       int64     `json:"balance"` // Smallest currency unit
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BalancePair holds both sides of a two-party balance mutation after commit.
type BalancePair struct {
	FromAfter int64 `json:"from_after"`
	ToAfter   int64 `json:"to_after"`
}

// ValidAccountNumber reports whether s is a well-formed ten digit account number.
func ValidAccountNumber(s string) bool {
	if len(s) != AccountNumberLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
