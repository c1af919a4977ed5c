package postgres

import (
	"context"
	"errors"
	"fmt"

	"internet-banking-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const recipientColumns = `id, owner_id, account_number, mnemonic_name, bank_code, created_at, updated_at`

// RecipientRepo implements ports.RecipientRepository.
type RecipientRepo struct {
	pool Pool
}

// NewRecipientRepo creates a new RecipientRepo.
func NewRecipientRepo(pool Pool) *RecipientRepo {
	return &RecipientRepo{pool: pool}
}

// Upsert inserts the alias or renames the existing one for the same payee.
func (r *RecipientRepo) Upsert(ctx context.Context, rec *domain.Recipient) (*domain.Recipient, error) {
	query := `INSERT INTO recipients (` + recipientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, account_number, bank_code)
		DO UPDATE SET mnemonic_name = EXCLUDED.mnemonic_name, updated_at = EXCLUDED.updated_at
		RETURNING ` + recipientColumns

	saved, err := scanRecipientRow(r.pool.QueryRow(ctx, query,
		rec.ID, rec.OwnerID, rec.AccountNumber, rec.MnemonicName, rec.BankCode, rec.CreatedAt, rec.UpdatedAt,
	))
	if err != nil {
		return nil, translateError("upsert recipient", err)
	}
	return saved, nil
}

func (r *RecipientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`
	return scanRecipientRow(r.pool.QueryRow(ctx, query, id))
}

func (r *RecipientRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE owner_id = $1 ORDER BY mnemonic_name, id`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		var rec domain.Recipient
		if err := scanRecipient(rows, &rec); err != nil {
			return nil, fmt.Errorf("scan recipient row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipient rows: %w", err)
	}
	return out, nil
}

func (r *RecipientRepo) Rename(ctx context.Context, id, ownerID uuid.UUID, mnemonic string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recipients SET mnemonic_name = $3, updated_at = now() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, mnemonic,
	)
	if err != nil {
		return false, fmt.Errorf("rename recipient: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RecipientRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recipients WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete recipient: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanRecipientRow(row pgx.Row) (*domain.Recipient, error) {
	rec := &domain.Recipient{}
	if err := scanRecipient(row, rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

func scanRecipient(row pgx.Row, rec *domain.Recipient) error {
	return row.Scan(&rec.ID, &rec.OwnerID, &rec.AccountNumber, &rec.MnemonicName, &rec.BankCode, &rec.CreatedAt, &rec.UpdatedAt)
}
