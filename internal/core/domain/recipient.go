package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recipient is a saved alias for an account the owner pays regularly.
// BankCode is empty for accounts held at this bank.
type Recipient struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	AccountNumber string    `json:"account_number"`
	MnemonicName  string    `json:"mnemonic_name"`
	BankCode      string    `json:"bank_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
