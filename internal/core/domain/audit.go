package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionInternalTransfer AuditAction = "INTERNAL_TRANSFER"
	AuditActionExternalTransfer AuditAction = "EXTERNAL_TRANSFER"
	AuditActionInboundDeposit   AuditAction = "INBOUND_DEPOSIT"
	AuditActionTellerDeposit    AuditAction = "TELLER_DEPOSIT"
	AuditActionInvoicePay       AuditAction = "INVOICE_PAY"
	AuditActionInvoiceDelete    AuditAction = "INVOICE_DELETE"
	AuditActionLogout           AuditAction = "LOGOUT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	ActorRole    Role        `json:"actor_role,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
