package service

import (
	"context"
	"fmt"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FeePolicy prices transfers.
type FeePolicy struct {
	Rate            domain.FeeRate
	DefaultFeePayer domain.FeePayer
}

// payer resolves the requested fee payer, falling back to the default.
func (p FeePolicy) payer(requested domain.FeePayer) (domain.FeePayer, error) {
	if requested == "" {
		requested = p.DefaultFeePayer
	}
	switch requested {
	case domain.FeePayerSender, domain.FeePayerReceiver:
		return requested, nil
	case "":
		return domain.FeePayerSender, nil
	}
	return "", apperror.Validation(fmt.Sprintf("unknown fee payer %q", requested))
}

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	accounts   ports.AccountRepository
	txRepo     ports.TransactionRepository
	tokens     ports.TokenAuthority
	recipients ports.RecipientService
	notifier   ports.NotificationDispatcher
	transactor ports.DBTransactor
	fees       FeePolicy
	tokenTTL   time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
// recipients may be nil, in which case SaveRecipient is ignored.
func NewTransferService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	tokens ports.TokenAuthority,
	recipients ports.RecipientService,
	notifier ports.NotificationDispatcher,
	transactor ports.DBTransactor,
	fees FeePolicy,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		accounts:   accounts,
		txRepo:     txRepo,
		tokens:     tokens,
		recipients: recipients,
		notifier:   notifier,
		transactor: transactor,
		fees:       fees,
		tokenTTL:   tokenTTL,
		now:        time.Now,
		log:        log,
	}
}

// RequestTransferToken issues a TRANSFER token and hands it to the mailer.
func (s *TransferServiceImpl) RequestTransferToken(ctx context.Context, ownerID uuid.UUID) (*ports.TokenIssued, error) {
	account, err := s.accounts.GetByID(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.AccountNotFound()
	}

	token, err := s.tokens.Issue(ctx, domain.TokenKindTransfer, ownerID, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(ctx, domain.OTPIssued{
		OwnerID:   ownerID,
		Kind:      token.Kind,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	})

	return &ports.TokenIssued{Kind: token.Kind, ExpiresAt: token.ExpiresAt}, nil
}

// ExecuteInternalTransfer moves funds between two local accounts.
// The token consumption, both balance updates, the fee and the ledger record
// commit together or not at all.
func (s *TransferServiceImpl) ExecuteInternalTransfer(ctx context.Context, req ports.InternalTransferRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.InvalidAmount()
	}
	feePayer, err := s.fees.payer(req.FeePayer)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.tokens.ConsumeTx(ctx, dbTx, req.AuthToken, domain.TokenKindTransfer, req.FromAccountID); err != nil {
		return nil, err
	}

	if req.FromAccountID == req.ToAccountID {
		return nil, apperror.SelfTransfer()
	}

	locked, err := s.accounts.LockForUpdate(ctx, dbTx, req.FromAccountID, req.ToAccountID)
	if err != nil {
		return nil, passThrough("lock accounts", err)
	}
	if locked[req.FromAccountID] == nil {
		return nil, apperror.AccountNotFound()
	}
	receiver := locked[req.ToAccountID]
	if receiver == nil {
		return nil, apperror.RecipientNotFound()
	}

	balances, err := s.accounts.Transfer(ctx, dbTx, req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		return nil, passThrough("transfer", err)
	}

	fee := s.fees.Rate.FeeFor(req.Amount)
	if fee > 0 {
		if feePayer == domain.FeePayerSender {
			balances.FromAfter, err = s.accounts.Debit(ctx, dbTx, req.FromAccountID, fee)
		} else {
			balances.ToAfter, err = s.accounts.Debit(ctx, dbTx, req.ToAccountID, fee)
		}
		if err != nil {
			return nil, passThrough("debit fee", err)
		}
	}

	counterparty := receiver.AccountNumber
	txn := &domain.Transaction{
		ID:                        uuid.New(),
		Kind:                      domain.TransactionKindInternal,
		Amount:                    req.Amount,
		Fee:                       fee,
		FeePayer:                  feePayer,
		FromAccountID:             &req.FromAccountID,
		ToAccountID:               &req.ToAccountID,
		CounterpartyAccountNumber: &counterparty,
		Message:                   req.Message,
		CreatedAt:                 s.now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("from", req.FromAccountID.String()).
		Str("to", req.ToAccountID.String()).
		Int64("amount", req.Amount).
		Int64("fee", fee).
		Str("fee_payer", string(feePayer)).
		Msg("internal transfer completed")

	if req.SaveRecipient && s.recipients != nil {
		_, err := s.recipients.Save(ctx, ports.SaveRecipientRequest{
			OwnerID:       req.FromAccountID,
			AccountNumber: receiver.AccountNumber,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("tx_id", txn.ID.String()).Msg("failed to save recipient after transfer")
		}
	}

	return &ports.TransferResult{Transaction: txn, Balances: *balances}, nil
}
