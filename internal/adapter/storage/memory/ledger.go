package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	store *Store
}

func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	return r.store.write(ctx, tx, func(st *state) error {
		if _, ok := st.transactions[t.ID]; ok {
			return apperror.Conflict(fmt.Errorf("transaction %s already exists", t.ID))
		}
		st.transactions[t.ID] = *t
		st.txOrder = append(st.txOrder, t.ID)
		return nil
	})
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.store.read(nil, func(st *state) {
		if t, ok := st.transactions[id]; ok {
			out = &t
		}
	})
	return out, err
}

// List returns the account's history newest first; ties keep reverse insertion order.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var matched []domain.Transaction
	err := r.store.read(nil, func(st *state) {
		for i := len(st.txOrder) - 1; i >= 0; i-- {
			t := st.transactions[st.txOrder[i]]
			if !t.Involves(params.AccountID) {
				continue
			}
			if params.Kind != nil && t.Kind != *params.Kind {
				continue
			}
			matched = append(matched, t)
		}
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortStableFunc(matched, func(a, b domain.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	start, end := paginate(len(matched), params.Page, params.PageSize)
	return matched[start:end], int64(len(matched)), nil
}

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	store *Store
}

func NewInvoiceRepo(store *Store) *InvoiceRepo {
	return &InvoiceRepo{store: store}
}

func (r *InvoiceRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Invoice) error {
	return r.store.write(ctx, tx, func(st *state) error {
		if _, ok := st.invoices[inv.ID]; ok {
			return apperror.Conflict(fmt.Errorf("invoice %s already exists", inv.ID))
		}
		st.invoices[inv.ID] = *inv
		return nil
	})
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return r.get(nil, id)
}

func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error) {
	if _, err := r.store.own(tx); err != nil {
		return nil, err
	}
	return r.get(tx, id)
}

func (r *InvoiceRepo) get(tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := r.store.read(tx, func(st *state) {
		if inv, ok := st.invoices[id]; ok {
			out = &inv
		}
	})
	return out, err
}

func (r *InvoiceRepo) UpdateOpen(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64, message string, now time.Time) (bool, error) {
	return r.updateOpen(ctx, tx, id, func(inv *domain.Invoice) {
		inv.Amount = amount
		inv.Message = message
		inv.UpdatedAt = now
	})
}

func (r *InvoiceRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) (bool, error) {
	return r.updateOpen(ctx, tx, id, func(inv *domain.Invoice) {
		inv.Status = domain.InvoiceStatusPaid
		inv.PaidAt = &paidAt
		inv.UpdatedAt = paidAt
	})
}

func (r *InvoiceRepo) MarkDeleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, deletedAt time.Time) (bool, error) {
	return r.updateOpen(ctx, tx, id, func(inv *domain.Invoice) {
		inv.Status = domain.InvoiceStatusDeleted
		inv.DeleteReason = &reason
		inv.DeletedAt = &deletedAt
		inv.UpdatedAt = deletedAt
	})
}

func (r *InvoiceRepo) updateOpen(ctx context.Context, tx pgx.Tx, id uuid.UUID, apply func(*domain.Invoice)) (bool, error) {
	if _, err := r.store.own(tx); err != nil {
		return false, err
	}
	var changed bool
	err := r.store.write(ctx, tx, func(st *state) error {
		inv, ok := st.invoices[id]
		if !ok || !inv.IsOpen() {
			return nil
		}
		apply(&inv)
		st.invoices[id] = inv
		changed = true
		return nil
	})
	return changed, err
}

func (r *InvoiceRepo) List(ctx context.Context, params ports.InvoiceListParams) ([]domain.Invoice, int64, error) {
	var matched []domain.Invoice
	err := r.store.read(nil, func(st *state) {
		for _, inv := range st.invoices {
			if invoiceMatches(&inv, params) {
				matched = append(matched, inv)
			}
		}
	})
	if err != nil {
		return nil, 0, err
	}
	slices.SortFunc(matched, func(a, b domain.Invoice) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(b.ID[:], a.ID[:])
	})

	start, end := paginate(len(matched), params.Page, params.PageSize)
	return matched[start:end], int64(len(matched)), nil
}

func invoiceMatches(inv *domain.Invoice, params ports.InvoiceListParams) bool {
	switch params.Filter {
	case domain.InvoiceFilterCreated:
		if inv.CreatorID != params.CustomerID {
			return false
		}
	case domain.InvoiceFilterReceived:
		if inv.PayerID != params.CustomerID {
			return false
		}
	default:
		if !inv.IsParty(params.CustomerID) {
			return false
		}
	}
	if params.IsPaid != nil && inv.IsPaid() != *params.IsPaid {
		return false
	}
	if !params.IncludeDeleted && inv.Status == domain.InvoiceStatusDeleted {
		return false
	}
	return true
}

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	store *Store
}

func NewSettlementRepo(store *Store) *SettlementRepo {
	return &SettlementRepo{store: store}
}

func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error {
	if _, err := r.store.own(tx); err != nil {
		return err
	}
	return r.store.write(ctx, tx, func(st *state) error {
		if _, ok := st.settlements[s.IdempotencyKey]; ok {
			return apperror.Conflict(fmt.Errorf("settlement %s already recorded", s.IdempotencyKey))
		}
		st.settlements[s.IdempotencyKey] = *s
		return nil
	})
}

func (r *SettlementRepo) Get(ctx context.Context, key string) (*domain.Settlement, error) {
	var out *domain.Settlement
	err := r.store.read(nil, func(st *state) {
		if s, ok := st.settlements[key]; ok {
			out = &s
		}
	})
	return out, err
}
