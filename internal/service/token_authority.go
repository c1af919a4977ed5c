package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// tokenBytes is the entropy of every opaque token (64 hex chars).
const tokenBytes = 32

// TokenAuthorityImpl implements ports.TokenAuthority.
type TokenAuthorityImpl struct {
	tokens     ports.TokenRepository
	transactor ports.DBTransactor
	now        func() time.Time
	log        zerolog.Logger
}

// NewTokenAuthority creates a new TokenAuthorityImpl.
func NewTokenAuthority(
	tokens ports.TokenRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *TokenAuthorityImpl {
	return &TokenAuthorityImpl{
		tokens:     tokens,
		transactor: transactor,
		now:        time.Now,
		log:        log,
	}
}

// Issue mints a new token. TRANSFER tokens are subject to a cooldown: while
// the owner still holds an unexpired, unused one, issuance is refused.
func (a *TokenAuthorityImpl) Issue(ctx context.Context, kind domain.TokenKind, ownerID uuid.UUID, ttl time.Duration) (*domain.AuthToken, error) {
	return a.IssueScoped(ctx, kind, ownerID, "", ttl)
}

// IssueScoped mints a token that only ConsumeScopedTx with the same scope
// accepts.
func (a *TokenAuthorityImpl) IssueScoped(ctx context.Context, kind domain.TokenKind, ownerID uuid.UUID, scope string, ttl time.Duration) (*domain.AuthToken, error) {
	if !kind.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown token kind %q", kind))
	}
	if ttl <= 0 {
		return nil, apperror.Validation("token lifetime must be positive")
	}

	value, err := generateRandomHex(tokenBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	dbTx, err := a.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := a.now().UTC()

	if kind == domain.TokenKindTransfer {
		// Two concurrent requests must not both pass the cooldown check.
		if err := a.tokens.LockOwner(ctx, dbTx, ownerID, kind); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock token owner: %w", err))
		}
		active, err := a.tokens.FindActiveByOwner(ctx, dbTx, ownerID, kind, now)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("find active token: %w", err))
		}
		if active != nil {
			return nil, apperror.TooManyRequests()
		}
	}

	token := &domain.AuthToken{
		ID:        uuid.New(),
		Value:     value,
		Kind:      kind,
		OwnerID:   ownerID,
		Scope:     scope,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := a.tokens.Create(ctx, dbTx, token); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create token: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	a.log.Debug().
		Str("kind", string(kind)).
		Str("owner_id", ownerID.String()).
		Time("expires_at", token.ExpiresAt).
		Msg("token issued")

	return token, nil
}

// Consume validates and blacklists a token in its own transaction and
// returns the owner it was issued to.
func (a *TokenAuthorityImpl) Consume(ctx context.Context, value string, kind domain.TokenKind) (uuid.UUID, error) {
	dbTx, err := a.transactor.Begin(ctx)
	if err != nil {
		return uuid.Nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	token, err := a.consume(ctx, dbTx, value, kind, nil, "")
	if err != nil {
		return uuid.Nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return uuid.Nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return token.OwnerID, nil
}

// ConsumeTx consumes a token inside the caller's transaction. If the caller
// rolls back, the token returns to circulation.
func (a *TokenAuthorityImpl) ConsumeTx(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID uuid.UUID) error {
	_, err := a.consume(ctx, tx, value, kind, &ownerID, "")
	return err
}

// ConsumeScopedTx consumes a token issued for scope inside the caller's
// transaction. A token for any other scope is invalid.
func (a *TokenAuthorityImpl) ConsumeScopedTx(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID uuid.UUID, scope string) error {
	_, err := a.consume(ctx, tx, value, kind, &ownerID, scope)
	return err
}

// consume blacklists the token inside tx. A scope mismatch is reported after
// the row was flipped, so the caller's rollback puts the token back.
func (a *TokenAuthorityImpl) consume(ctx context.Context, tx pgx.Tx, value string, kind domain.TokenKind, ownerID *uuid.UUID, scope string) (*domain.AuthToken, error) {
	if value == "" {
		return nil, apperror.TokenInvalid()
	}

	now := a.now().UTC()
	token, err := a.tokens.Consume(ctx, tx, value, kind, ownerID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("consume token: %w", err))
	}
	if token != nil {
		if token.Scope != scope {
			return nil, apperror.TokenInvalid()
		}
		return token, nil
	}

	// Nothing matched; work out why for the caller.
	existing, err := a.tokens.GetByValue(ctx, tx, value)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get token: %w", err))
	}
	if err := classify(existing, kind, ownerID, now); err != nil {
		return nil, err
	}
	if existing.Scope != scope {
		return nil, apperror.TokenInvalid()
	}
	// Usable when re-read: a concurrent consumer held the row and rolled back.
	return nil, apperror.TokenAlreadyUsed()
}

// Validate checks a token without consuming it.
func (a *TokenAuthorityImpl) Validate(ctx context.Context, value string, kind domain.TokenKind) (*domain.AuthToken, error) {
	if value == "" {
		return nil, apperror.TokenInvalid()
	}
	token, err := a.tokens.GetByValue(ctx, nil, value)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get token: %w", err))
	}
	if err := classify(token, kind, nil, a.now().UTC()); err != nil {
		return nil, err
	}
	return token, nil
}

// Revoke blacklists a token regardless of kind. Unknown values are ignored.
func (a *TokenAuthorityImpl) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return apperror.TokenInvalid()
	}
	if err := a.tokens.Blacklist(ctx, value, a.now().UTC()); err != nil {
		return apperror.InternalError(fmt.Errorf("blacklist token: %w", err))
	}
	return nil
}

// classify returns nil when token is usable for kind and owner at now.
// A used token reports TokenAlreadyUsed even after it has also expired.
func classify(token *domain.AuthToken, kind domain.TokenKind, ownerID *uuid.UUID, now time.Time) error {
	switch {
	case token == nil, token.Kind != kind:
		return apperror.TokenInvalid()
	case ownerID != nil && token.OwnerID != *ownerID:
		return apperror.TokenInvalid()
	case token.IsBlacklisted:
		return apperror.TokenAlreadyUsed()
	case token.IsExpired(now):
		return apperror.TokenExpired()
	}
	return nil
}

// generateRandomHex generates a random hex string of n bytes.
func generateRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// passThrough keeps domain failures raised below the service intact and
// wraps everything else as an internal error.
func passThrough(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}
