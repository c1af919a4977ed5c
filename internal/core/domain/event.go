package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle event handed to the notification dispatcher.
type EventType string

const (
	EventInvoiceCreated   EventType = "InvoiceCreated"
	EventInvoicePaid      EventType = "InvoicePaid"
	EventInvoiceCancelled EventType = "InvoiceCancelled"
	EventOTPIssued        EventType = "OTPIssued"
)

// Event is emitted only after the transaction that produced it has committed.
type Event interface {
	EventType() EventType
}

type InvoiceCreated struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	CreatorID uuid.UUID `json:"creator_id"`
	PayerID   uuid.UUID `json:"payer_id"`
	Amount    int64     `json:"amount"`
}

func (InvoiceCreated) EventType() EventType { return EventInvoiceCreated }

type InvoicePaid struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
}

func (InvoicePaid) EventType() EventType { return EventInvoicePaid }

type InvoiceCancelled struct {
	InvoiceID uuid.UUID `json:"invoice_id"`
	Reason    string    `json:"reason"`
	CreatorID uuid.UUID `json:"creator_id"`
	PayerID   uuid.UUID `json:"payer_id"`
}

func (InvoiceCancelled) EventType() EventType { return EventInvoiceCancelled }

// OTPIssued asks the out-of-band mailer to deliver a one-time token to its owner.
type OTPIssued struct {
	OwnerID   uuid.UUID  `json:"owner_id"`
	Kind      TokenKind  `json:"kind"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	InvoiceID *uuid.UUID `json:"invoice_id,omitempty"`
}

func (OTPIssued) EventType() EventType { return EventOTPIssued }
