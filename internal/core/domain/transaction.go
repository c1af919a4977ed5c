package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind represents the kind of ledger movement.
type TransactionKind string

const (
	TransactionKindInternal    TransactionKind = "INTERNAL"
	TransactionKindExternalIn  TransactionKind = "EXTERNAL_IN"
	TransactionKindExternalOut TransactionKind = "EXTERNAL_OUT"
	TransactionKindDeposit     TransactionKind = "DEPOSIT"
)

// Transaction is an immutable record of one settled ledger movement.
// FromAccountID is nil for inbound-external and deposit legs; ToAccountID is
// nil for outbound-external legs.
type Transaction struct {
	ID                        uuid.UUID       `json:"id"`
	Kind                      TransactionKind `json:"kind"`
	Amount                    int64           `json:"amount"` // Positive, smallest currency unit
	Fee                       int64           `json:"fee"`
	FeePayer                  FeePayer        `json:"fee_payer,omitempty"`
	FromAccountID             *uuid.UUID      `json:"from_account_id,omitempty"`
	ToAccountID               *uuid.UUID      `json:"to_account_id,omitempty"`
	CounterpartyAccountNumber *string         `json:"counterparty_account_number,omitempty"`
	ExternalCounterpartyRef   *string         `json:"external_counterparty_ref,omitempty"`
	InvoiceID                 *uuid.UUID      `json:"invoice_id,omitempty"`
	Message                   string          `json:"message"`
	CreatedAt                 time.Time       `json:"created_at"`
}

// IsExternal returns true for legs that settle against the partner bank.
func (t *Transaction) IsExternal() bool {
	return t.Kind == TransactionKindExternalIn || t.Kind == TransactionKindExternalOut
}

// Involves reports whether accountID is on either side of the movement.
func (t *Transaction) Involves(accountID uuid.UUID) bool {
	return (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
		(t.ToAccountID != nil && *t.ToAccountID == accountID)
}
