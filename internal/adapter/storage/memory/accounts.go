package memory

import (
	"context"
	"fmt"
	"math"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	store *Store
}

func NewAccountRepo(store *Store) *AccountRepo {
	return &AccountRepo{store: store}
}

func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	return r.store.write(ctx, nil, func(st *state) error {
		if _, ok := st.accounts[a.ID]; ok {
			return apperror.Conflict(fmt.Errorf("account %s already exists", a.ID))
		}
		if _, ok := st.accountNumbers[a.AccountNumber]; ok {
			return apperror.Conflict(fmt.Errorf("account number %s already exists", a.AccountNumber))
		}
		st.accounts[a.ID] = *a
		st.accountNumbers[a.AccountNumber] = a.ID
		return nil
	})
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var out *domain.Account
	err := r.store.read(nil, func(st *state) { out = st.account(id) })
	return out, err
}

func (r *AccountRepo) GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var out *domain.Account
	err := r.store.read(nil, func(st *state) { out = st.accountByNumber(accountNumber) })
	return out, err
}

func (r *AccountRepo) GetByAccountNumberForUpdate(ctx context.Context, tx pgx.Tx, accountNumber string) (*domain.Account, error) {
	var out *domain.Account
	err := r.store.read(tx, func(st *state) { out = st.accountByNumber(accountNumber) })
	return out, err
}

// LockForUpdate returns the existing accounts. The transaction already
// excludes every other writer.
func (r *AccountRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	locked := make(map[uuid.UUID]*domain.Account, len(ids))
	err := r.store.read(tx, func(st *state) {
		for _, id := range ids {
			if a := st.account(id); a != nil {
				locked[id] = a
			}
		}
	})
	return locked, err
}

func (r *AccountRepo) Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.InvalidAmount()
	}
	var balance int64
	err := r.store.write(ctx, tx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return apperror.AccountNotFound()
		}
		if a.Balance < amount {
			return apperror.InsufficientFunds()
		}
		a.Balance -= amount
		a.UpdatedAt = time.Now()
		st.accounts[id] = a
		balance = a.Balance
		return nil
	})
	return balance, err
}

func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.InvalidAmount()
	}
	var balance int64
	err := r.store.write(ctx, tx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return apperror.AccountNotFound()
		}
		if a.Balance > math.MaxInt64-amount {
			return apperror.InvalidAmount()
		}
		a.Balance += amount
		a.UpdatedAt = time.Now()
		st.accounts[id] = a
		balance = a.Balance
		return nil
	})
	return balance, err
}

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

func (st *state) account(id uuid.UUID) *domain.Account {
	a, ok := st.accounts[id]
	if !ok {
		return nil
	}
	return &a
}

func (st *state) accountByNumber(number string) *domain.Account {
	id, ok := st.accountNumbers[number]
	if !ok {
		return nil
	}
	return st.account(id)
}
