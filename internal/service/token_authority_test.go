package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports/mocks"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTokenAuthority_IssueConsume(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	owner := uuid.New()

	tok, err := l.tokens.Issue(ctx, domain.TokenKindResetPassword, owner, time.Minute)
	require.NoError(t, err)
	assert.Len(t, tok.Value, 2*tokenBytes)
	assert.Equal(t, owner, tok.OwnerID)

	got, err := l.tokens.Consume(ctx, tok.Value, domain.TokenKindResetPassword)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	// Every later attempt reports the token as used.
	_, err = l.tokens.Consume(ctx, tok.Value, domain.TokenKindResetPassword)
	assertAppError(t, err, apperror.KindTokenAlreadyUsed)
	_, err = l.tokens.Validate(ctx, tok.Value, domain.TokenKindResetPassword)
	assertAppError(t, err, apperror.KindTokenAlreadyUsed)
}

func TestTokenAuthority_Issue_Rejects(t *testing.T) {
	l := newLedger()

	_, err := l.tokens.Issue(context.Background(), domain.TokenKind("SESSION"), uuid.New(), time.Minute)
	assertAppError(t, err, apperror.KindValidation)

	_, err = l.tokens.Issue(context.Background(), domain.TokenKindTransfer, uuid.New(), 0)
	assertAppError(t, err, apperror.KindValidation)
}

func TestTokenAuthority_TransferCooldown(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	owner := uuid.New()

	first, err := l.tokens.Issue(ctx, domain.TokenKindTransfer, owner, time.Minute)
	require.NoError(t, err)

	_, err = l.tokens.Issue(ctx, domain.TokenKindTransfer, owner, time.Minute)
	assertAppError(t, err, apperror.KindTooManyRequests)

	// Other owners and other kinds are unaffected.
	_, err = l.tokens.Issue(ctx, domain.TokenKindTransfer, uuid.New(), time.Minute)
	require.NoError(t, err)
	_, err = l.tokens.Issue(ctx, domain.TokenKindPayInvoice, owner, time.Minute)
	require.NoError(t, err)

	// Once consumed, a new one may be issued.
	_, err = l.tokens.Consume(ctx, first.Value, domain.TokenKindTransfer)
	require.NoError(t, err)
	_, err = l.tokens.Issue(ctx, domain.TokenKindTransfer, owner, time.Minute)
	require.NoError(t, err)
}

func TestTokenAuthority_TransferCooldown_Concurrent(t *testing.T) {
	l := newLedger()
	owner := uuid.New()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.tokens.Issue(context.Background(), domain.TokenKindTransfer, owner, time.Minute)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	issued := 0
	for err := range errs {
		if err == nil {
			issued++
			continue
		}
		assertAppError(t, err, apperror.KindTooManyRequests)
	}
	assert.Equal(t, 1, issued)
}

func TestTokenAuthority_ExpiredToken(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	owner := uuid.New()

	tok, err := l.tokens.Issue(ctx, domain.TokenKindTransfer, owner, time.Minute)
	require.NoError(t, err)

	l.tokens.now = func() time.Time { return time.Now().Add(time.Minute) }

	_, err = l.tokens.Consume(ctx, tok.Value, domain.TokenKindTransfer)
	assertAppError(t, err, apperror.KindTokenExpired)

	// Cooldown ends with expiry.
	_, err = l.tokens.Issue(ctx, domain.TokenKindTransfer, owner, time.Minute)
	require.NoError(t, err)
}

func TestTokenAuthority_WrongKindOrOwner(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	owner := uuid.New()
	value := l.issue(t, domain.TokenKindTransfer, owner)

	_, err := l.tokens.Consume(ctx, value, domain.TokenKindPayInvoice)
	assertAppError(t, err, apperror.KindTokenInvalid)

	tx, err := l.store.Begin(ctx)
	require.NoError(t, err)
	err = l.tokens.ConsumeTx(ctx, tx, value, domain.TokenKindTransfer, uuid.New())
	assertAppError(t, err, apperror.KindTokenInvalid)
	require.NoError(t, tx.Rollback(ctx))

	_, err = l.tokens.Consume(ctx, "deadbeef", domain.TokenKindTransfer)
	assertAppError(t, err, apperror.KindTokenInvalid)
	_, err = l.tokens.Consume(ctx, "", domain.TokenKindTransfer)
	assertAppError(t, err, apperror.KindTokenInvalid)

	// Still usable by its owner.
	tok, err := l.tokens.Validate(ctx, value, domain.TokenKindTransfer)
	require.NoError(t, err)
	assert.Equal(t, owner, tok.OwnerID)
}

func TestTokenAuthority_ConsumeTx_RollbackRestores(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	owner := uuid.New()
	value := l.issue(t, domain.TokenKindTransfer, owner)

	tx, err := l.store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, l.tokens.ConsumeTx(ctx, tx, value, domain.TokenKindTransfer, owner))
	require.NoError(t, tx.Rollback(ctx))

	got, err := l.tokens.Consume(ctx, value, domain.TokenKindTransfer)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
}

func TestTokenAuthority_ConsumeScopedTx(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	owner := uuid.New()
	invoice := uuid.New()
	value := l.otpFor(t, owner, invoice)

	tok, err := l.tokens.Validate(ctx, value, domain.TokenKindPayInvoice)
	require.NoError(t, err)
	assert.Equal(t, invoice.String(), tok.Scope)

	tx, err := l.store.Begin(ctx)
	require.NoError(t, err)
	err = l.tokens.ConsumeScopedTx(ctx, tx, value, domain.TokenKindPayInvoice, owner, uuid.NewString())
	assertAppError(t, err, apperror.KindTokenInvalid)
	require.NoError(t, tx.Rollback(ctx))

	// Unscoped consumers cannot spend it either.
	_, err = l.tokens.Consume(ctx, value, domain.TokenKindPayInvoice)
	assertAppError(t, err, apperror.KindTokenInvalid)

	tx, err = l.store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, l.tokens.ConsumeScopedTx(ctx, tx, value, domain.TokenKindPayInvoice, owner, invoice.String()))
	require.NoError(t, tx.Commit(ctx))

	tx, err = l.store.Begin(ctx)
	require.NoError(t, err)
	err = l.tokens.ConsumeScopedTx(ctx, tx, value, domain.TokenKindPayInvoice, owner, invoice.String())
	assertAppError(t, err, apperror.KindTokenAlreadyUsed)
	require.NoError(t, tx.Rollback(ctx))
}

func TestTokenAuthority_ConcurrentConsume_OneWins(t *testing.T) {
	l := newLedger()
	owner := uuid.New()
	value := l.issue(t, domain.TokenKindPayInvoice, owner)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.tokens.Consume(context.Background(), value, domain.TokenKindPayInvoice)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assertAppError(t, err, apperror.KindTokenAlreadyUsed)
	}
	assert.Equal(t, 1, wins)
}

func TestTokenAuthority_Revoke(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	value := l.issue(t, domain.TokenKindRefresh, uuid.New())

	require.NoError(t, l.tokens.Revoke(ctx, value))
	require.NoError(t, l.tokens.Revoke(ctx, "unknown"))

	_, err := l.tokens.Consume(ctx, value, domain.TokenKindRefresh)
	assertAppError(t, err, apperror.KindTokenAlreadyUsed)
}

func TestTokenAuthority_RepoFailureIsInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockTokenRepository(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl)
	authority := NewTokenAuthority(repo, transactor, newTestLogger())

	ctx := context.Background()
	tx := &mockTx{}
	owner := uuid.New()

	transactor.EXPECT().Begin(ctx).Return(tx, nil)
	repo.EXPECT().LockOwner(ctx, tx, owner, domain.TokenKindTransfer).Return(nil)
	repo.EXPECT().FindActiveByOwner(ctx, tx, owner, domain.TokenKindTransfer, gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := authority.Issue(ctx, domain.TokenKindTransfer, owner, time.Minute)
	assertAppError(t, err, apperror.KindInternal)
}
