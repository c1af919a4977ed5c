package postgres

import (
	"context"
	"errors"
	"fmt"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, account_number, display_name, balance, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.AccountNumber, a.DisplayName, a.Balance, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return translateError("insert account", err)
	}
	return nil
}

// GetByID fetches an account by UUID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// GetByAccountNumber fetches an account by its public number.
func (r *AccountRepo) GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, accountNumber))
}

// GetByAccountNumberForUpdate fetches and row-locks an account by number.
func (r *AccountRepo) GetByAccountNumberForUpdate(ctx context.Context, tx pgx.Tx, accountNumber string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR UPDATE`
	return scanAccount(tx.QueryRow(ctx, query, accountNumber))
}

// LockForUpdate locks the given rows. ORDER BY runs below the row-lock step,
// so locks are always taken in ascending id order.
func (r *AccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, translateError("lock accounts", err)
	}
	defer rows.Close()

	locked := make(map[uuid.UUID]*domain.Account, len(ids))
	for rows.Next() {
		a := &domain.Account{}
		if err := rows.Scan(&a.ID, &a.AccountNumber, &a.DisplayName, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		locked[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("iterate account rows", err)
	}
	return locked, nil
}

// Debit subtracts amount in a single conditional statement and returns the new balance.
func (r *AccountRepo) Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.InvalidAmount()
	}

	query := `UPDATE accounts SET balance = balance - $1, updated_at = now()
		WHERE id = $2 AND balance >= $1 RETURNING balance`

	var balance int64
	err := tx.QueryRow(ctx, query, amount, id).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, translateError("debit account", err)
	}

	exists, err := r.exists(ctx, tx, id)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, apperror.InsufficientFunds()
	}
	return 0, apperror.AccountNotFound()
}

// Credit adds amount and returns the new balance.
func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.InvalidAmount()
	}

	query := `UPDATE accounts SET balance = balance + $1, updated_at = now()
		WHERE id = $2 RETURNING balance`

	var balance int64
	err := tx.QueryRow(ctx, query, amount, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperror.AccountNotFound()
		}
		return 0, translateError("credit account", err)
	}
	return balance, nil
}

// Transfer debits fromID then credits toID inside tx. Callers that touch both
// rows should LockForUpdate them first so concurrent transfers agree on lock order.
func (r *AccountRepo) Transfer(ctx context.Context, tx pgx.Tx, fromID, toID uuid.UUID, amount int64) (*domain.BalancePair, error) {
	if fromID == toID {
		return nil, apperror.SelfTransfer()
	}

	fromAfter, err := r.Debit(ctx, tx, fromID, amount)
	if err != nil {
		return nil, err
	}
	toAfter, err := r.Credit(ctx, tx, toID, amount)
	if err != nil {
		return nil, err
	}
	return &domain.BalancePair{FromAfter: fromAfter, ToAfter: toAfter}, nil
}

func (r *AccountRepo) exists(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account exists: %w", err)
	}
	return exists, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.AccountNumber, &a.DisplayName, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
