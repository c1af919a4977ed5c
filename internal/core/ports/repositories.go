package ports

import (
	"context"
	"time"

	"internet-banking-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// AccountRepository owns every balance mutation.
// Methods accepting pgx.Tx must run inside a transaction opened by DBTransactor;
// each mutation is a single conditional statement so that the precondition
// check and the write cannot be separated.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	GetByAccountNumberForUpdate(ctx context.Context, tx pgx.Tx, accountNumber string) (*domain.Account, error)
	// LockForUpdate row-locks the given accounts in ascending id order and
	// returns those that exist.
	LockForUpdate(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error)
	// Debit decrements the balance only if it stays non-negative.
	// Fails with InsufficientFunds or AccountNotFound.
	Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error)
	// Credit increments the balance. Fails with AccountNotFound.
	Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error)
	// Transfer moves amount from one account to another inside tx.
	Transfer(ctx context.Context, tx pgx.Tx, fromID, toID uuid.UUID, amount int64) (*domain.BalancePair, error)
}

// TokenRepository persists authorization tokens. Tokens are never deleted.
type TokenRepository interface {
	Create(ctx context.Context, tx pgx.Tx, token *domain.AuthToken) error
	GetByValue(ctx context.Context, tx pgx.Tx, value string) (*domain.AuthToken, error)
	// LockOwner serializes issuance for one (owner, kind) pair until tx ends.
	LockOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, kind domain.TokenKind) error
	FindActiveByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, kind domain.TokenKind, now time.Time) (*domain.AuthToken, error)
	// Consume blacklists a usable token in one conditional statement and
	// returns it, or returns nil when no usable token matched.
	// A nil ownerID matches any owner.
	Consume(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID *uuid.UUID, now time.Time) (*domain.AuthToken, error)
	Blacklist(ctx context.Context, value string, now time.Time) error
}

// TransactionRepository defines persistence operations for ledger records.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	AccountID uuid.UUID
	Kind      *domain.TransactionKind
	Page      int
	PageSize  int
}

// InvoiceRepository defines persistence operations for invoices.
// The Mark* methods only change rows still in state OPEN and report whether
// they did.
type InvoiceRepository interface {
	Create(ctx context.Context, tx pgx.Tx, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error)
	UpdateOpen(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64, message string, now time.Time) (bool, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) (bool, error)
	MarkDeleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, deletedAt time.Time) (bool, error)
	List(ctx context.Context, params InvoiceListParams) ([]domain.Invoice, int64, error)
}

// InvoiceListParams holds filter + pagination for listing invoices.
type InvoiceListParams struct {
	CustomerID     uuid.UUID
	Filter         domain.InvoiceFilter
	IsPaid         *bool
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// SettlementRepository records interbank legs by idempotency key.
type SettlementRepository interface {
	// Create fails with a Conflict error when the key already exists.
	Create(ctx context.Context, tx pgx.Tx, settlement *domain.Settlement) error
	Get(ctx context.Context, key string) (*domain.Settlement, error)
}

// RecipientRepository stores saved payee aliases.
type RecipientRepository interface {
	// Upsert inserts or renames the (owner, account number, bank) alias.
	Upsert(ctx context.Context, recipient *domain.Recipient) (*domain.Recipient, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Recipient, error)
	Rename(ctx context.Context, id, ownerID uuid.UUID, mnemonic string) (bool, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
