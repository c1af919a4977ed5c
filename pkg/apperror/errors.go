package apperror

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories surfaced by the ledger core.
// Transport layers map a Kind to their own status codes.
type Kind string

const (
	KindInsufficientFunds     Kind = "INSUFFICIENT_FUNDS"
	KindAccountNotFound       Kind = "ACCOUNT_NOT_FOUND"
	KindRecipientNotFound     Kind = "RECIPIENT_NOT_FOUND"
	KindSelfTransfer          Kind = "SELF_TRANSFER"
	KindSelfInvoice           Kind = "SELF_INVOICE"
	KindInvalidAmount         Kind = "INVALID_AMOUNT"
	KindTokenInvalid          Kind = "TOKEN_INVALID"
	KindTokenExpired          Kind = "TOKEN_EXPIRED"
	KindTokenAlreadyUsed      Kind = "TOKEN_ALREADY_USED"
	KindTooManyRequests       Kind = "TOO_MANY_REQUESTS"
	KindForbidden             Kind = "FORBIDDEN"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindInvoiceNotFound       Kind = "INVOICE_NOT_FOUND"
	KindAlreadyPaid           Kind = "ALREADY_PAID"
	KindAlreadyDeleted        Kind = "ALREADY_DELETED"
	KindUntrustedResponse     Kind = "UNTRUSTED_RESPONSE"
	KindSettlementUnavailable Kind = "SETTLEMENT_UNAVAILABLE"
	KindSettlementRejected    Kind = "SETTLEMENT_REJECTED"
	KindNotFound              Kind = "NOT_FOUND"
	KindConflict              Kind = "CONFLICT"
	KindValidation            Kind = "VALIDATION"
	KindInternal              Kind = "INTERNAL"
)

// AppError is a domain failure with a stable kind and a client-safe message.
type AppError struct {
	Kind    Kind   `json:"error_code"`
	Message string `json:"message"`
	Err     error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first AppError in err's chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries an AppError of the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// ---- Ledger ----

func InsufficientFunds() *AppError {
	return New(KindInsufficientFunds, "Insufficient balance")
}

func AccountNotFound() *AppError {
	return New(KindAccountNotFound, "Account not found")
}

func RecipientNotFound() *AppError {
	return New(KindRecipientNotFound, "Recipient account not found")
}

func SelfTransfer() *AppError {
	return New(KindSelfTransfer, "Cannot transfer to the same account")
}

func InvalidAmount() *AppError {
	return New(KindInvalidAmount, "Amount must be a positive integer")
}

// ---- Tokens ----

func TokenInvalid() *AppError {
	return New(KindTokenInvalid, "Token is invalid")
}

func TokenExpired() *AppError {
	return New(KindTokenExpired, "Token has expired")
}

func TokenAlreadyUsed() *AppError {
	return New(KindTokenAlreadyUsed, "Token has already been used")
}

func TooManyRequests() *AppError {
	return New(KindTooManyRequests, "An active token already exists, try again later")
}

func RateLimitExceeded() *AppError {
	return New(KindTooManyRequests, "Rate limit exceeded")
}

// ---- Authorization ----

func Forbidden() *AppError {
	return New(KindForbidden, "Operation not permitted for this actor")
}

func Unauthorized() *AppError {
	return New(KindUnauthorized, "Missing or invalid credentials")
}

// ---- Invoices ----

func SelfInvoice() *AppError {
	return New(KindSelfInvoice, "Cannot issue an invoice to yourself")
}

func InvoiceNotFound() *AppError {
	return New(KindInvoiceNotFound, "Invoice not found")
}

func AlreadyPaid() *AppError {
	return New(KindAlreadyPaid, "Invoice has already been paid")
}

func AlreadyDeleted() *AppError {
	return New(KindAlreadyDeleted, "Invoice has been deleted")
}

// ---- Interbank ----

func UntrustedResponse(reason string) *AppError {
	return New(KindUntrustedResponse, "Partner bank message could not be trusted: "+reason)
}

func SettlementUnavailable(err error) *AppError {
	return Wrap(KindSettlementUnavailable, "Partner bank is unavailable", err)
}

func SettlementRejected(reason string) *AppError {
	return New(KindSettlementRejected, "Partner bank rejected the transfer: "+reason)
}

// ---- Generic ----

func NotFound(entity string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", entity))
}

func Conflict(err error) *AppError {
	return Wrap(KindConflict, "Concurrent update conflict", err)
}

// Validation returns a validation error with a caller-facing message.
func Validation(message string) *AppError {
	return New(KindValidation, message)
}

// InternalError wraps an unexpected error as a generic internal failure.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "Internal server error", err)
}
