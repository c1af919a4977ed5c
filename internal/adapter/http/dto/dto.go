package dto

import "time"

// RefreshRequest is the request body for session refresh and logout.
// Role selects which refresh token kind is expected.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=128"`
	Role         string `json:"role,omitempty" binding:"omitempty,oneof=CUSTOMER EMPLOYEE"`
}

// SessionResponse is the response body for a freshly minted session.
type SessionResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenIssuedResponse acknowledges that a token was sent out of band.
type TokenIssuedResponse struct {
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InternalTransferRequest is the request body for a same-bank transfer.
type InternalTransferRequest struct {
	ToAccountNumber string `json:"to_account_number" binding:"required,account_number"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	Message         string `json:"message" binding:"max=255"`
	FeePayer        string `json:"fee_payer,omitempty" binding:"omitempty,oneof=SENDER RECEIVER"`
	Token           string `json:"token" binding:"required,max=128"`
	SaveRecipient   bool   `json:"save_recipient,omitempty"`
}

// ExternalTransferRequest is the request body for a transfer to the partner bank.
type ExternalTransferRequest struct {
	ToAccountNumber string `json:"to_account_number" binding:"required,account_number"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	Message         string `json:"message" binding:"max=255"`
	FeePayer        string `json:"fee_payer,omitempty" binding:"omitempty,oneof=SENDER RECEIVER"`
	Token           string `json:"token" binding:"required,max=128"`
	IdempotencyKey  string `json:"idempotency_key" binding:"required,max=100,safe_id"`
}

// AccountQueryRequest is the request body for a partner account lookup.
type AccountQueryRequest struct {
	AccountNumber string `json:"account_number" binding:"required,account_number"`
}

// CreateInvoiceRequest is the request body for invoice creation.
type CreateInvoiceRequest struct {
	PayerAccountNumber string `json:"payer_account_number" binding:"required,account_number"`
	Amount             int64  `json:"amount" binding:"required,gt=0"`
	Message            string `json:"message" binding:"max=255"`
}

// UpdateInvoiceRequest is the request body for invoice edits.
type UpdateInvoiceRequest struct {
	Amount  int64  `json:"amount" binding:"required,gt=0"`
	Message string `json:"message" binding:"max=255"`
}

// DeleteInvoiceRequest is the optional request body for invoice cancellation.
type DeleteInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// PayInvoiceRequest is the request body for paying an invoice.
type PayInvoiceRequest struct {
	OTP string `json:"otp" binding:"required,max=128"`
}

// SaveRecipientRequest is the request body for saving a payee.
type SaveRecipientRequest struct {
	AccountNumber string `json:"account_number" binding:"required,account_number"`
	MnemonicName  string `json:"mnemonic_name" binding:"max=100"`
	BankCode      string `json:"bank_code,omitempty" binding:"omitempty,max=20,safe_id"`
}

// RenameRecipientRequest is the request body for renaming a payee.
type RenameRecipientRequest struct {
	MnemonicName string `json:"mnemonic_name" binding:"required,max=100"`
}

// DepositRequest is the request body for a teller deposit.
type DepositRequest struct {
	AccountNumber string `json:"account_number" binding:"required,account_number"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Message       string `json:"message" binding:"max=255"`
}
