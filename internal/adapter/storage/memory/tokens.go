package memory

import (
	"context"
	"fmt"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TokenRepo implements ports.TokenRepository.
type TokenRepo struct {
	store *Store
}

func NewTokenRepo(store *Store) *TokenRepo {
	return &TokenRepo{store: store}
}

func (r *TokenRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.AuthToken) error {
	return r.store.write(ctx, tx, func(st *state) error {
		if _, ok := st.tokens[t.Value]; ok {
			return apperror.Conflict(fmt.Errorf("token value already exists"))
		}
		st.tokens[t.Value] = *t
		return nil
	})
}

func (r *TokenRepo) GetByValue(ctx context.Context, tx pgx.Tx, value string) (*domain.AuthToken, error) {
	var out *domain.AuthToken
	err := r.store.read(tx, func(st *state) {
		if t, ok := st.tokens[value]; ok {
			out = &t
		}
	})
	return out, err
}

// LockOwner only checks that tx is live; transactions are already serialized.
func (r *TokenRepo) LockOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, kind domain.TokenKind) error {
	_, err := r.store.own(tx)
	return err
}

func (r *TokenRepo) FindActiveByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, kind domain.TokenKind, now time.Time) (*domain.AuthToken, error) {
	var out *domain.AuthToken
	err := r.store.read(tx, func(st *state) {
		for _, t := range st.tokens {
			if t.OwnerID != ownerID || t.Kind != kind || !t.IsUsable(now) {
				continue
			}
			if out == nil || t.CreatedAt.After(out.CreatedAt) {
				found := t
				out = &found
			}
		}
	})
	return out, err
}

func (r *TokenRepo) Consume(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID *uuid.UUID, now time.Time) (*domain.AuthToken, error) {
	var out *domain.AuthToken
	err := r.store.write(ctx, tx, func(st *state) error {
		t, ok := st.tokens[value]
		if !ok || t.Kind != kind || !t.IsUsable(now) {
			return nil
		}
		if ownerID != nil && t.OwnerID != *ownerID {
			return nil
		}
		t.IsBlacklisted = true
		t.ConsumedAt = &now
		st.tokens[value] = t
		out = &t
		return nil
	})
	return out, err
}

func (r *TokenRepo) Blacklist(ctx context.Context, value string, now time.Time) error {
	return r.store.write(ctx, nil, func(st *state) error {
		t, ok := st.tokens[value]
		if !ok {
			return nil
		}
		t.IsBlacklisted = true
		if t.ConsumedAt == nil {
			t.ConsumedAt = &now
		}
		st.tokens[value] = t
		return nil
	})
}
