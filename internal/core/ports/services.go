package ports

import (
	"context"
	"time"

	"internet-banking-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// MessageSigner seals outbound interbank payloads with the local private key
// and opens inbound ones against the partner's public key.
type MessageSigner interface {
	Seal(payload any) (*domain.SignedEnvelope, error)
	// Open verifies the signature before decoding into out. Any failure
	// is an UntrustedResponse.
	Open(env *domain.SignedEnvelope, out any) error
}

// AccessTokenService mints and validates short-lived session JWTs.
type AccessTokenService interface {
	Generate(subjectID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*AccessClaims, error)
}

// AccessClaims holds the parsed session claims.
type AccessClaims struct {
	SubjectID uuid.UUID
	Role      domain.Role
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// EventPublisher moves an event out of the process (stream, webhook, log).
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// NotificationDispatcher accepts committed lifecycle events. It never fails
// the caller.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, event domain.Event)
}

// PartnerBankClient talks to the partner bank. It performs exactly one
// attempt per call; retry policy belongs to the caller.
type PartnerBankClient interface {
	Transfer(ctx context.Context, msg domain.TransferMessage) (*domain.TransferReceipt, error)
	QueryAccount(ctx context.Context, accountNumber string) (*domain.AccountInfo, error)
}

// --- Service Ports (Business Logic) ---

// TokenAuthority issues and consumes authorization tokens.
type TokenAuthority interface {
	Issue(ctx context.Context, kind domain.TokenKind, ownerID uuid.UUID, ttl time.Duration) (*domain.AuthToken, error)
	// IssueScoped mints a token usable only for the resource named by scope.
	IssueScoped(ctx context.Context, kind domain.TokenKind, ownerID uuid.UUID, scope string, ttl time.Duration) (*domain.AuthToken, error)
	// Consume atomically validates and blacklists a token in its own transaction.
	Consume(ctx context.Context, value string, kind domain.TokenKind) (uuid.UUID, error)
	// ConsumeTx consumes inside the caller's transaction, bound to ownerID.
	ConsumeTx(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID uuid.UUID) error
	// ConsumeScopedTx is ConsumeTx for a token issued with IssueScoped.
	ConsumeScopedTx(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID uuid.UUID, scope string) error
	// Validate checks a token without consuming it.
	Validate(ctx context.Context, value string, kind domain.TokenKind) (*domain.AuthToken, error)
	Revoke(ctx context.Context, value string) error
}

// TransferService executes internal transfers.
type TransferService interface {
	RequestTransferToken(ctx context.Context, ownerID uuid.UUID) (*TokenIssued, error)
	ExecuteInternalTransfer(ctx context.Context, req InternalTransferRequest) (*TransferResult, error)
}

// TokenIssued tells the caller a token went out of band, without revealing it.
type TokenIssued struct {
	Kind      domain.TokenKind
	ExpiresAt time.Time
}

// InternalTransferRequest holds validated input for an internal transfer.
type InternalTransferRequest struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Amount        int64
	Message       string
	FeePayer      domain.FeePayer
	AuthToken     string
	SaveRecipient bool
}

// TransferResult is a settled movement plus the post-commit balances.
// For external legs only the local side is populated.
type TransferResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Balances    domain.BalancePair  `json:"balances"`
}

// SettlementService settles transfers with the partner bank.
type SettlementService interface {
	ExecuteExternalTransfer(ctx context.Context, req ExternalTransferRequest) (*TransferResult, error)
	QueryPartnerAccount(ctx context.Context, accountNumber string) (*domain.AccountInfo, error)
	ReceiveDeposit(ctx context.Context, env *domain.SignedEnvelope) (*domain.SignedEnvelope, error)
	AnswerAccountQuery(ctx context.Context, env *domain.SignedEnvelope) (*domain.SignedEnvelope, error)
}

// ExternalTransferRequest holds validated input for an outbound transfer.
// IdempotencyKey is supplied by the caller and reused across retries.
type ExternalTransferRequest struct {
	FromAccountID   uuid.UUID
	ToAccountNumber string
	Amount          int64
	Message         string
	FeePayer        domain.FeePayer
	AuthToken       string
	IdempotencyKey  string
}

// InvoiceService is the invoice state machine.
type InvoiceService interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*domain.Invoice, error)
	Update(ctx context.Context, req UpdateInvoiceRequest) (*domain.Invoice, error)
	Pay(ctx context.Context, invoiceID, payerID uuid.UUID, otp string) (*TransferResult, error)
	Delete(ctx context.Context, invoiceID, requesterID uuid.UUID, reason string) error
	Get(ctx context.Context, invoiceID, requesterID uuid.UUID) (*domain.Invoice, error)
	List(ctx context.Context, params InvoiceListParams) ([]domain.Invoice, int64, error)
	RequestPaymentOTP(ctx context.Context, invoiceID, payerID uuid.UUID) (*TokenIssued, error)
}

// CreateInvoiceRequest holds validated input for invoice creation.
// The payer is addressed by account number.
type CreateInvoiceRequest struct {
	CreatorID          uuid.UUID
	PayerAccountNumber string
	Amount             int64
	Message            string
}

// UpdateInvoiceRequest holds validated input for invoice edits.
type UpdateInvoiceRequest struct {
	InvoiceID   uuid.UUID
	RequesterID uuid.UUID
	Amount      int64
	Message     string
}

// ReportingService answers read-only ledger queries.
type ReportingService interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	ResolveAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TellerService credits customer accounts from the counter.
type TellerService interface {
	Deposit(ctx context.Context, req DepositRequest) (*TransferResult, error)
}

// DepositRequest holds validated input for a teller deposit.
type DepositRequest struct {
	EmployeeID    uuid.UUID
	AccountNumber string
	Amount        int64
	Message       string
	IPAddress     string // Recorded in the audit trail
}

// RecipientService manages saved payees.
type RecipientService interface {
	Save(ctx context.Context, req SaveRecipientRequest) (*domain.Recipient, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]domain.Recipient, error)
	Rename(ctx context.Context, id, ownerID uuid.UUID, mnemonic string) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// SaveRecipientRequest holds validated input for saving a payee.
// An empty MnemonicName defaults to the account's display name.
type SaveRecipientRequest struct {
	OwnerID       uuid.UUID
	AccountNumber string
	MnemonicName  string
	BankCode      string
}

// SessionService manages session credentials.
type SessionService interface {
	Issue(ctx context.Context, subjectID uuid.UUID, role domain.Role) (*Session, error)
	Refresh(ctx context.Context, refreshToken string, role domain.Role) (*Session, error)
	Logout(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, subjectID uuid.UUID) (*TokenIssued, error)
	ConsumePasswordReset(ctx context.Context, token string) (uuid.UUID, error)
}

// Session is an access JWT plus an opaque refresh token.
type Session struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuditService records audit entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// HealthChecker is a dependency probed by GET /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
