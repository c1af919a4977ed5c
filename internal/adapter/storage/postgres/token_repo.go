package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"internet-banking-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tokenColumns = `id, token_value, kind, owner_id, scope, expires_at, is_blacklisted, created_at, consumed_at`

// TokenRepo implements ports.TokenRepository.
type TokenRepo struct {
	pool Pool
}

// NewTokenRepo creates a new TokenRepo.
func NewTokenRepo(pool Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

// Create inserts a token. A nil tx writes through the pool.
func (r *TokenRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.AuthToken) error {
	query := `INSERT INTO auth_tokens (` + tokenColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		t.ID, t.Value, t.Kind, t.OwnerID, t.Scope, t.ExpiresAt, t.IsBlacklisted, t.CreatedAt, t.ConsumedAt,
	)
	if err != nil {
		return translateError("insert token", err)
	}
	return nil
}

// GetByValue fetches a token regardless of its state.
func (r *TokenRepo) GetByValue(ctx context.Context, tx pgx.Tx, value string) (*domain.AuthToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens WHERE token_value = $1`
	return scanToken(on(r.pool, tx).QueryRow(ctx, query, value))
}

// LockOwner takes a transaction-scoped advisory lock on (owner, kind).
func (r *TokenRepo) LockOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, kind domain.TokenKind) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID.String()+":"+string(kind))
	if err != nil {
		return fmt.Errorf("lock token owner: %w", err)
	}
	return nil
}

// FindActiveByOwner returns the newest usable token of kind for ownerID, or nil.
func (r *TokenRepo) FindActiveByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, kind domain.TokenKind, now time.Time) (*domain.AuthToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM auth_tokens
		WHERE owner_id = $1 AND kind = $2 AND NOT is_blacklisted AND expires_at > $3
		ORDER BY created_at DESC LIMIT 1`
	return scanToken(on(r.pool, tx).QueryRow(ctx, query, ownerID, kind, now))
}

// Consume flips a usable token to blacklisted and returns it. Of two
// concurrent callers only one sees a row.
func (r *TokenRepo) Consume(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID *uuid.UUID, now time.Time) (*domain.AuthToken, error) {
	query := `UPDATE auth_tokens SET is_blacklisted = TRUE, consumed_at = $3
		WHERE token_value = $1 AND kind = $2 AND NOT is_blacklisted AND expires_at > $3`
	args := []any{value, kind, now}
	if ownerID != nil {
		query += ` AND owner_id = $4`
		args = append(args, *ownerID)
	}
	query += ` RETURNING ` + tokenColumns

	return scanToken(on(r.pool, tx).QueryRow(ctx, query, args...))
}

// Blacklist revokes a token outside any business transaction. Unknown values are ignored.
func (r *TokenRepo) Blacklist(ctx context.Context, value string, now time.Time) error {
	query := `UPDATE auth_tokens SET is_blacklisted = TRUE, consumed_at = COALESCE(consumed_at, $2)
		WHERE token_value = $1`

	if _, err := r.pool.Exec(ctx, query, value, now); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func scanToken(row pgx.Row) (*domain.AuthToken, error) {
	t := &domain.AuthToken{}
	err := row.Scan(&t.ID, &t.Value, &t.Kind, &t.OwnerID, &t.Scope, &t.ExpiresAt, &t.IsBlacklisted, &t.CreatedAt, &t.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return t, nil
}
