package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"internet-banking-core/internal/adapter/storage/memory"
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, expected apperror.Kind) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expected, appErr.Kind, appErr.Error())
}

// spyNotifier records dispatched events.
type spyNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *spyNotifier) Dispatch(_ context.Context, event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *spyNotifier) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

// lastOTP returns the most recent OTP handed to the mailer for owner.
func (s *spyNotifier) lastOTP(t *testing.T, owner uuid.UUID, kind domain.TokenKind) string {
	t.Helper()
	events := s.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if otp, ok := events[i].(domain.OTPIssued); ok && otp.OwnerID == owner && otp.Kind == kind {
			return otp.Token
		}
	}
	t.Fatalf("no %s OTP issued to %s", kind, owner)
	return ""
}

// ledger wires the services over a fresh in-memory store.
type ledger struct {
	store        *memory.Store
	accounts     *memory.AccountRepo
	tokenRepo    *memory.TokenRepo
	txRepo       *memory.TransactionRepo
	invoiceRepo  *memory.InvoiceRepo
	settlements  *memory.SettlementRepo
	recipientsDB *memory.RecipientRepo
	tokens       *TokenAuthorityImpl
	notifier     *spyNotifier
}

var accountSeq atomic.Int64

func newLedger() *ledger {
	store := memory.NewStore()
	l := &ledger{
		store:        store,
		accounts:     memory.NewAccountRepo(store),
		tokenRepo:    memory.NewTokenRepo(store),
		txRepo:       memory.NewTransactionRepo(store),
		invoiceRepo:  memory.NewInvoiceRepo(store),
		settlements:  memory.NewSettlementRepo(store),
		recipientsDB: memory.NewRecipientRepo(store),
		notifier:     &spyNotifier{},
	}
	l.tokens = NewTokenAuthority(l.tokenRepo, store, newTestLogger())
	return l
}

func (l *ledger) seed(t *testing.T, name string, balance int64) *domain.Account {
	t.Helper()
	now := time.Now().UTC()
	a := &domain.Account{
		ID:            uuid.New(),
		AccountNumber: fmt.Sprintf("%010d", accountSeq.Add(1)),
		DisplayName:   name,
		Balance:       balance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, l.accounts.Create(context.Background(), a))
	return a
}

func (l *ledger) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	a, err := l.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance
}

func (l *ledger) issue(t *testing.T, kind domain.TokenKind, owner uuid.UUID) string {
	t.Helper()
	tok, err := l.tokens.Issue(context.Background(), kind, owner, 5*time.Minute)
	require.NoError(t, err)
	return tok.Value
}

// otpFor issues a PAY_INVOICE token for invoiceID.
func (l *ledger) otpFor(t *testing.T, owner, invoiceID uuid.UUID) string {
	t.Helper()
	tok, err := l.tokens.IssueScoped(context.Background(), domain.TokenKindPayInvoice, owner, invoiceID.String(), 5*time.Minute)
	require.NoError(t, err)
	return tok.Value
}

var onePercent = FeePolicy{
	Rate:            domain.FeeRate{Numerator: 1, Denominator: 100},
	DefaultFeePayer: domain.FeePayerSender,
}
