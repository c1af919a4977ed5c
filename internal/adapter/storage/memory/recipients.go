package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"internet-banking-core/internal/core/domain"

	"github.com/google/uuid"
)

// RecipientRepo implements ports.RecipientRepository.
type RecipientRepo struct {
	store *Store
}

func NewRecipientRepo(store *Store) *RecipientRepo {
	return &RecipientRepo{store: store}
}

func (r *RecipientRepo) Upsert(ctx context.Context, rec *domain.Recipient) (*domain.Recipient, error) {
	var out domain.Recipient
	err := r.store.write(ctx, nil, func(st *state) error {
		for id, existing := range st.recipients {
			if existing.OwnerID == rec.OwnerID && existing.AccountNumber == rec.AccountNumber && existing.BankCode == rec.BankCode {
				existing.MnemonicName = rec.MnemonicName
				existing.UpdatedAt = rec.UpdatedAt
				st.recipients[id] = existing
				out = existing
				return nil
			}
		}
		st.recipients[rec.ID] = *rec
		out = *rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RecipientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	var out *domain.Recipient
	err := r.store.read(nil, func(st *state) {
		if rec, ok := st.recipients[id]; ok {
			out = &rec
		}
	})
	return out, err
}

func (r *RecipientRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Recipient, error) {
	var out []domain.Recipient
	err := r.store.read(nil, func(st *state) {
		for _, rec := range st.recipients {
			if rec.OwnerID == ownerID {
				out = append(out, rec)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Recipient) int {
		if c := strings.Compare(a.MnemonicName, b.MnemonicName); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out, err
}

func (r *RecipientRepo) Rename(ctx context.Context, id, ownerID uuid.UUID, mnemonic string) (bool, error) {
	var ok bool
	err := r.store.write(ctx, nil, func(st *state) error {
		rec, found := st.recipients[id]
		if !found || rec.OwnerID != ownerID {
			return nil
		}
		rec.MnemonicName = mnemonic
		rec.UpdatedAt = time.Now()
		st.recipients[id] = rec
		ok = true
		return nil
	})
	return ok, err
}

func (r *RecipientRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	var ok bool
	err := r.store.write(ctx, nil, func(st *state) error {
		rec, found := st.recipients[id]
		if !found || rec.OwnerID != ownerID {
			return nil
		}
		delete(st.recipients, id)
		ok = true
		return nil
	})
	return ok, err
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	store *Store
}

func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	return r.store.write(ctx, nil, func(st *state) error {
		st.audit = append(st.audit, *log)
		return nil
	})
}

// Entries returns the audit trail in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	var out []domain.AuditLog
	_ = r.store.read(nil, func(st *state) { out = slices.Clone(st.audit) })
	return out
}
