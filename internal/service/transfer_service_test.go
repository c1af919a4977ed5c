package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransferService(l *ledger, fees FeePolicy, recipients ports.RecipientService) *TransferServiceImpl {
	return NewTransferService(l.accounts, l.txRepo, l.tokens, recipients, l.notifier, l.store, fees, 5*time.Minute, newTestLogger())
}

// requestToken goes through the mailer path, the way a customer would.
func requestToken(t *testing.T, l *ledger, svc *TransferServiceImpl, owner uuid.UUID) string {
	t.Helper()
	issued, err := svc.RequestTransferToken(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, domain.TokenKindTransfer, issued.Kind)
	return l.notifier.lastOTP(t, owner, domain.TokenKindTransfer)
}

func TestTransferService_Internal_SenderPaysFee(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)
	b := l.seed(t, "Bob", 0)

	result, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        100,
		Message:       "rent",
		AuthToken:     requestToken(t, l, svc, a.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(899), l.balance(t, a.ID))
	assert.Equal(t, int64(100), l.balance(t, b.ID))
	assert.Equal(t, domain.BalancePair{FromAfter: 899, ToAfter: 100}, result.Balances)

	txn := result.Transaction
	assert.Equal(t, domain.TransactionKindInternal, txn.Kind)
	assert.Equal(t, int64(100), txn.Amount)
	assert.Equal(t, int64(1), txn.Fee)
	assert.Equal(t, domain.FeePayerSender, txn.FeePayer)
	assert.Equal(t, b.AccountNumber, *txn.CounterpartyAccountNumber)

	stored, err := l.txRepo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "rent", stored.Message)
}

func TestTransferService_Internal_UsesInjectedClock(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	fixed := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	a := l.seed(t, "Alice", 1000)
	b := l.seed(t, "Bob", 0)

	result, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        100,
		AuthToken:     l.issue(t, domain.TokenKindTransfer, a.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, result.Transaction.CreatedAt)
}

func TestTransferService_Internal_ReceiverPaysFee(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)
	b := l.seed(t, "Bob", 0)

	result, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        100,
		FeePayer:      domain.FeePayerReceiver,
		AuthToken:     requestToken(t, l, svc, a.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(900), l.balance(t, a.ID))
	assert.Equal(t, int64(99), l.balance(t, b.ID))
	assert.Equal(t, domain.BalancePair{FromAfter: 900, ToAfter: 99}, result.Balances)
}

func TestTransferService_Internal_FeeRoundsDown(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)
	b := l.seed(t, "Bob", 0)

	result, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        99,
		AuthToken:     requestToken(t, l, svc, a.ID),
	})
	require.NoError(t, err)
	assert.Zero(t, result.Transaction.Fee)
	assert.Equal(t, int64(901), l.balance(t, a.ID))
}

func TestTransferService_Internal_InsufficientFundsRollsBack(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 100)
	b := l.seed(t, "Bob", 0)
	token := requestToken(t, l, svc, a.ID)

	// 100 + 1 fee exceeds the balance.
	_, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        100,
		AuthToken:     token,
	})
	assertAppError(t, err, apperror.KindInsufficientFunds)
	assert.Equal(t, int64(100), l.balance(t, a.ID))
	assert.Equal(t, int64(0), l.balance(t, b.ID))

	// The token went back into circulation with the rollback.
	_, err = svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        50,
		AuthToken:     token,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), l.balance(t, b.ID))
}

func TestTransferService_Internal_TokenSingleUse(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)
	b := l.seed(t, "Bob", 0)
	req := ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        100,
		AuthToken:     requestToken(t, l, svc, a.ID),
	}

	_, err := svc.ExecuteInternalTransfer(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.ExecuteInternalTransfer(context.Background(), req)
	assertAppError(t, err, apperror.KindTokenAlreadyUsed)
	assert.Equal(t, int64(899), l.balance(t, a.ID))
}

func TestTransferService_Internal_TokenBoundToOwner(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)
	b := l.seed(t, "Bob", 1000)

	_, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        100,
		AuthToken:     requestToken(t, l, svc, b.ID),
	})
	assertAppError(t, err, apperror.KindTokenInvalid)
}

func TestTransferService_Internal_Rejects(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)

	tests := []struct {
		name string
		req  ports.InternalTransferRequest
		want apperror.Kind
	}{
		{"zero amount", ports.InternalTransferRequest{FromAccountID: a.ID, ToAccountID: uuid.New(), Amount: 0}, apperror.KindInvalidAmount},
		{"negative amount", ports.InternalTransferRequest{FromAccountID: a.ID, ToAccountID: uuid.New(), Amount: -5}, apperror.KindInvalidAmount},
		{"bad fee payer", ports.InternalTransferRequest{FromAccountID: a.ID, ToAccountID: uuid.New(), Amount: 5, FeePayer: "BANK"}, apperror.KindValidation},
		{"missing token", ports.InternalTransferRequest{FromAccountID: a.ID, ToAccountID: uuid.New(), Amount: 5}, apperror.KindTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ExecuteInternalTransfer(context.Background(), tt.req)
			assertAppError(t, err, tt.want)
		})
	}
}

func TestTransferService_Internal_SelfTransfer(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)
	token := requestToken(t, l, svc, a.ID)

	_, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   a.ID,
		Amount:        100,
		AuthToken:     token,
	})
	assertAppError(t, err, apperror.KindSelfTransfer)
	assert.Equal(t, int64(1000), l.balance(t, a.ID))

	_, err = l.tokens.Validate(context.Background(), token, domain.TokenKindTransfer)
	assert.NoError(t, err, "failed transfer must not spend the token")
}

func TestTransferService_Internal_UnknownRecipient(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)

	_, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   uuid.New(),
		Amount:        100,
		AuthToken:     requestToken(t, l, svc, a.ID),
	})
	assertAppError(t, err, apperror.KindRecipientNotFound)
	assert.Equal(t, int64(1000), l.balance(t, a.ID))
}

func TestTransferService_Internal_SavesRecipient(t *testing.T) {
	l := newLedger()
	recipients := NewRecipientService(l.recipientsDB, l.accounts, "IBC")
	svc := newTransferService(l, onePercent, recipients)
	a := l.seed(t, "Alice", 1000)
	b := l.seed(t, "Bob", 0)

	_, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
		FromAccountID: a.ID,
		ToAccountID:   b.ID,
		Amount:        100,
		AuthToken:     requestToken(t, l, svc, a.ID),
		SaveRecipient: true,
	})
	require.NoError(t, err)

	saved, err := recipients.List(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, b.AccountNumber, saved[0].AccountNumber)
	assert.Equal(t, "Bob", saved[0].MnemonicName)
}

func TestTransferService_RequestTransferToken(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)
	a := l.seed(t, "Alice", 1000)

	_, err := svc.RequestTransferToken(context.Background(), uuid.New())
	assertAppError(t, err, apperror.KindAccountNotFound)

	requestToken(t, l, svc, a.ID)
	_, err = svc.RequestTransferToken(context.Background(), a.ID)
	assertAppError(t, err, apperror.KindTooManyRequests)
}

// Random concurrent transfers never create or destroy money: the total of
// all balances drops by exactly the fees charged.
func TestTransferService_Internal_ConcurrentConservation(t *testing.T) {
	l := newLedger()
	svc := newTransferService(l, onePercent, nil)

	accounts := make([]*domain.Account, 5)
	var initial int64
	for i := range accounts {
		accounts[i] = l.seed(t, "Holder", 10_000)
		initial += 10_000
	}

	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fees int64

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perWorker; i++ {
				from := accounts[rng.Intn(len(accounts))]
				to := accounts[rng.Intn(len(accounts))]
				// Another worker may hold the sender's cooldown; skip the round.
				transferTok, err := l.tokens.Issue(context.Background(), domain.TokenKindTransfer, from.ID, time.Minute)
				if err != nil {
					assert.Equal(t, apperror.KindTooManyRequests, apperror.KindOf(err))
					continue
				}
				payer := domain.FeePayerSender
				if rng.Intn(2) == 0 {
					payer = domain.FeePayerReceiver
				}
				result, err := svc.ExecuteInternalTransfer(context.Background(), ports.InternalTransferRequest{
					FromAccountID: from.ID,
					ToAccountID:   to.ID,
					Amount:        int64(rng.Intn(3000) + 1),
					FeePayer:      payer,
					AuthToken:     transferTok.Value,
				})
				if err != nil {
					kind := apperror.KindOf(err)
					assert.Contains(t, []apperror.Kind{apperror.KindSelfTransfer, apperror.KindInsufficientFunds}, kind)
					_ = l.tokens.Revoke(context.Background(), transferTok.Value)
					continue
				}
				mu.Lock()
				fees += result.Transaction.Fee
				mu.Unlock()
			}
		}(int64(w))
	}
	wg.Wait()

	var final int64
	for _, a := range accounts {
		bal := l.balance(t, a.ID)
		assert.GreaterOrEqual(t, bal, int64(0))
		final += bal
	}
	assert.Equal(t, initial-fees, final)
}
