package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the lifecycle state of an invoice.
// OPEN -> PAID and OPEN -> DELETED are the only transitions.
type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "OPEN"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusDeleted InvoiceStatus = "DELETED"
)

// Invoice is a payment request from CreatorID to PayerID.
type Invoice struct {
	ID           uuid.UUID     `json:"id"`
	CreatorID    uuid.UUID     `json:"creator_id"`
	PayerID      uuid.UUID     `json:"payer_id"`
	Amount       int64         `json:"amount"`
	Message      string        `json:"message"`
	Status       InvoiceStatus `json:"status"`
	PaidAt       *time.Time    `json:"paid_at,omitempty"`
	DeletedAt    *time.Time    `json:"deleted_at,omitempty"`
	DeleteReason *string       `json:"delete_reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsPaid returns true once the invoice has been settled.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// IsOpen returns true while the invoice can still change.
func (i *Invoice) IsOpen() bool {
	return i.Status == InvoiceStatusOpen
}

// IsTerminal returns true for PAID and DELETED.
func (i *Invoice) IsTerminal() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusDeleted
}

// IsParty reports whether customerID is the creator or the payer.
func (i *Invoice) IsParty(customerID uuid.UUID) bool {
	return i.CreatorID == customerID || i.PayerID == customerID
}

// InvoiceFilter selects invoices by the caller's side of the relationship.
type InvoiceFilter string

const (
	InvoiceFilterCreated  InvoiceFilter = "created"
	InvoiceFilterReceived InvoiceFilter = "received"
	InvoiceFilterAll      InvoiceFilter = "all"
)
