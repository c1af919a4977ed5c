package postgres

import (
	"context"
	"errors"
	"fmt"

	"internet-banking-core/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Create records a settled leg. The idempotency key is the primary key, so a
// concurrent duplicate surfaces as a Conflict.
func (r *SettlementRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Settlement) error {
	query := `INSERT INTO settlements (idempotency_key, direction, partner_code, external_counterparty_ref,
		transaction_id, amount, response_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		s.IdempotencyKey, s.Direction, s.PartnerCode, s.ExternalCounterpartyRef,
		s.TransactionID, s.Amount, s.ResponseJSON, s.CreatedAt,
	)
	if err != nil {
		return translateError("insert settlement", err)
	}
	return nil
}

// Get fetches a settlement by key.
func (r *SettlementRepo) Get(ctx context.Context, key string) (*domain.Settlement, error) {
	query := `SELECT idempotency_key, direction, partner_code, external_counterparty_ref,
		transaction_id, amount, response_json, created_at
		FROM settlements WHERE idempotency_key = $1`

	s := &domain.Settlement{}
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&s.IdempotencyKey, &s.Direction, &s.PartnerCode, &s.ExternalCounterpartyRef,
		&s.TransactionID, &s.Amount, &s.ResponseJSON, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return s, nil
}
