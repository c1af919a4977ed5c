package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invoiceColumns = `id, creator_id, payer_id, amount, message, status, paid_at, deleted_at,
	delete_reason, created_at, updated_at`

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

// NewInvoiceRepo creates a new InvoiceRepo.
func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

func (r *InvoiceRepo) Create(ctx context.Context, tx pgx.Tx, inv *domain.Invoice) error {
	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := on(r.pool, tx).Exec(ctx, query,
		inv.ID, inv.CreatorID, inv.PayerID, inv.Amount, inv.Message, inv.Status,
		inv.PaidAt, inv.DeletedAt, inv.DeleteReason, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return translateError("insert invoice", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoiceRow(r.pool.QueryRow(ctx, query, id))
}

func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return scanInvoiceRow(tx.QueryRow(ctx, query, id))
}

func (r *InvoiceRepo) UpdateOpen(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int64, message string, now time.Time) (bool, error) {
	query := `UPDATE invoices SET amount = $2, message = $3, updated_at = $4
		WHERE id = $1 AND status = 'OPEN'`
	return r.execOpen(ctx, tx, "update invoice", query, id, amount, message, now)
}

// MarkPaid moves an OPEN invoice to PAID.
func (r *InvoiceRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, paidAt time.Time) (bool, error) {
	query := `UPDATE invoices SET status = 'PAID', paid_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'OPEN'`
	return r.execOpen(ctx, tx, "mark invoice paid", query, id, paidAt)
}

// MarkDeleted moves an OPEN invoice to DELETED.
func (r *InvoiceRepo) MarkDeleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string, deletedAt time.Time) (bool, error) {
	query := `UPDATE invoices SET status = 'DELETED', delete_reason = $2, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'OPEN'`
	return r.execOpen(ctx, tx, "mark invoice deleted", query, id, reason, deletedAt)
}

func (r *InvoiceRepo) execOpen(ctx context.Context, tx pgx.Tx, op, query string, args ...any) (bool, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return false, translateError(op, err)
	}
	return tag.RowsAffected() == 1, nil
}

// List fetches a customer's invoices with filtering and pagination, newest first.
func (r *InvoiceRepo) List(ctx context.Context, params ports.InvoiceListParams) ([]domain.Invoice, int64, error) {
	var conditions []string
	args := []any{params.CustomerID}
	argIdx := 2

	switch params.Filter {
	case domain.InvoiceFilterCreated:
		conditions = append(conditions, "creator_id = $1")
	case domain.InvoiceFilterReceived:
		conditions = append(conditions, "payer_id = $1")
	default:
		conditions = append(conditions, "(creator_id = $1 OR payer_id = $1)")
	}

	if params.IsPaid != nil {
		op := "<>"
		if *params.IsPaid {
			op = "="
		}
		conditions = append(conditions, fmt.Sprintf("status %s $%d", op, argIdx))
		args = append(args, domain.InvoiceStatusPaid)
		argIdx++
	}
	if !params.IncludeDeleted {
		conditions = append(conditions, fmt.Sprintf("status <> $%d", argIdx))
		args = append(args, domain.InvoiceStatusDeleted)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM invoices %s", where), args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM invoices %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, invoiceColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0, params.PageSize)
	for rows.Next() {
		var inv domain.Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, 0, fmt.Errorf("scan invoice row: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate invoice rows: %w", err)
	}
	return invoices, total, nil
}

func scanInvoiceRow(row pgx.Row) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	if err := scanInvoice(row, inv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return inv, nil
}

func scanInvoice(row pgx.Row, inv *domain.Invoice) error {
	return row.Scan(
		&inv.ID, &inv.CreatorID, &inv.PayerID, &inv.Amount, &inv.Message, &inv.Status,
		&inv.PaidAt, &inv.DeletedAt, &inv.DeleteReason, &inv.CreatedAt, &inv.UpdatedAt,
	)
}
