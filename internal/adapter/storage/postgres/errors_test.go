package postgres

import (
	"errors"
	"testing"

	"internet-banking-core/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperror.Kind
	}{
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, apperror.KindConflict},
		{"serialization failure", &pgconn.PgError{Code: codeSerializationFailure}, apperror.KindConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, apperror.KindConflict},
		{"balance check", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "accounts_balance_non_negative"}, apperror.KindInsufficientFunds},
		{"bigint overflow", &pgconn.PgError{Code: codeNumericOutOfRange}, apperror.KindInvalidAmount},
		{"other check", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: "invoices_check"}, apperror.KindInternal},
		{"plain error", errors.New("conn reset"), apperror.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperror.KindOf(translateError("op", tt.err)))
		})
	}
}
