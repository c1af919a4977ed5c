package postgres

import (
	"errors"
	"fmt"

	"internet-banking-core/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeNumericOutOfRange    = "22003"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// translateError maps driver errors onto the domain taxonomy. Anything it does
// not recognise is wrapped with op and left for the service to report as internal.
func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return apperror.Conflict(fmt.Errorf("%s: %w", op, err))
		case codeCheckViolation:
			if pgErr.ConstraintName == "accounts_balance_non_negative" {
				return apperror.InsufficientFunds()
			}
		case codeNumericOutOfRange:
			return apperror.InvalidAmount()
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
