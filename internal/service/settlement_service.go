package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// SettlementConfig identifies both banks and bounds the partner calls.
type SettlementConfig struct {
	BankCode             string
	PartnerCode          string
	MessageTTL           time.Duration
	RetryMaxAttempts     uint64
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	accounts    ports.AccountRepository
	txRepo      ports.TransactionRepository
	settlements ports.SettlementRepository
	idempCache  ports.IdempotencyCache
	nonces      ports.NonceStore
	signer      ports.MessageSigner
	partner     ports.PartnerBankClient
	tokens      ports.TokenAuthority
	transactor  ports.DBTransactor
	fees        FeePolicy
	cfg         SettlementConfig
	now         func() time.Time
	log         zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
// idempCache and nonces may be nil; the DB record stays authoritative.
func NewSettlementService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	settlements ports.SettlementRepository,
	idempCache ports.IdempotencyCache,
	nonces ports.NonceStore,
	signer ports.MessageSigner,
	partner ports.PartnerBankClient,
	tokens ports.TokenAuthority,
	transactor ports.DBTransactor,
	fees FeePolicy,
	cfg SettlementConfig,
	log zerolog.Logger,
) *SettlementServiceImpl {
	if cfg.RetryMaxAttempts == 0 {
		cfg.RetryMaxAttempts = 1
	}
	return &SettlementServiceImpl{
		accounts:    accounts,
		txRepo:      txRepo,
		settlements: settlements,
		idempCache:  idempCache,
		nonces:      nonces,
		signer:      signer,
		partner:     partner,
		tokens:      tokens,
		transactor:  transactor,
		fees:        fees,
		cfg:         cfg,
		now:         time.Now,
		log:         log,
	}
}

// ExecuteExternalTransfer debits a local account and has the partner credit
// one of theirs. The local transaction stays open across the partner call
// and commits only once a signed ACCEPTED receipt is in hand; any failure
// rolls back the debit and returns the token to circulation.
func (s *SettlementServiceImpl) ExecuteExternalTransfer(ctx context.Context, req ports.ExternalTransferRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.InvalidAmount()
	}
	if req.IdempotencyKey == "" {
		return nil, apperror.Validation("idempotency key is required")
	}
	if !domain.ValidAccountNumber(req.ToAccountNumber) {
		return nil, apperror.Validation(fmt.Sprintf("account number must be %d digits", domain.AccountNumberLength))
	}
	feePayer, err := s.fees.payer(req.FeePayer)
	if err != nil {
		return nil, err
	}

	// Keys are scoped per customer so one customer cannot read another's result.
	wireKey := req.FromAccountID.String() + ":" + req.IdempotencyKey
	key := domain.BuildSettlementKey(domain.SettlementOutbound, s.cfg.PartnerCode, wireKey)

	if stored, err := s.lookup(ctx, key); err != nil {
		return nil, err
	} else if stored != nil {
		return unmarshalTransferResult(stored)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.tokens.ConsumeTx(ctx, dbTx, req.AuthToken, domain.TokenKindTransfer, req.FromAccountID); err != nil {
		return nil, err
	}

	locked, err := s.accounts.LockForUpdate(ctx, dbTx, req.FromAccountID)
	if err != nil {
		return nil, passThrough("lock account", err)
	}
	sender := locked[req.FromAccountID]
	if sender == nil {
		return nil, apperror.AccountNotFound()
	}

	// The sender's fee stays with this bank; a receiver's fee is the partner's.
	var fee int64
	debit := req.Amount
	if feePayer == domain.FeePayerSender {
		fee = s.fees.Rate.FeeFor(req.Amount)
		debit += fee
	}
	balance, err := s.accounts.Debit(ctx, dbTx, sender.ID, debit)
	if err != nil {
		return nil, passThrough("debit", err)
	}

	now := s.now().UTC()
	msg := domain.TransferMessage{
		IdempotencyKey:    wireKey,
		Amount:            req.Amount,
		FromAccountNumber: sender.AccountNumber,
		ToAccountNumber:   req.ToAccountNumber,
		Message:           req.Message,
		Payer:             domain.DesignationFor(feePayer),
		CreatedAt:         now,
		ExpiredAt:         now.Add(s.cfg.MessageTTL),
	}
	receipt, err := s.transferWithRetry(ctx, msg)
	if err != nil {
		if apperror.Is(err, apperror.KindSettlementUnavailable) || apperror.Is(err, apperror.KindUntrustedResponse) {
			s.log.Error().Err(err).Str("key", key).Msg("outbound transfer outcome unconfirmed, rolled back locally")
		}
		return nil, err
	}

	counterparty := req.ToAccountNumber
	reference := receipt.Reference
	txn := &domain.Transaction{
		ID:                        uuid.New(),
		Kind:                      domain.TransactionKindExternalOut,
		Amount:                    req.Amount,
		Fee:                       fee,
		FeePayer:                  feePayer,
		FromAccountID:             &sender.ID,
		CounterpartyAccountNumber: &counterparty,
		ExternalCounterpartyRef:   &reference,
		Message:                   req.Message,
		CreatedAt:                 now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	result := &ports.TransferResult{Transaction: txn, Balances: domain.BalancePair{FromAfter: balance}}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal result: %w", err))
	}

	err = s.settlements.Create(ctx, dbTx, &domain.Settlement{
		IdempotencyKey:          key,
		Direction:               domain.SettlementOutbound,
		PartnerCode:             s.cfg.PartnerCode,
		ExternalCounterpartyRef: reference,
		TransactionID:           txn.ID,
		Amount:                  req.Amount,
		ResponseJSON:            resultJSON,
		CreatedAt:               now,
	})
	if err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			// A concurrent retry with the same key won; the partner saw one transfer.
			_ = dbTx.Rollback(ctx)
			return s.replayOutbound(ctx, key)
		}
		return nil, apperror.InternalError(fmt.Errorf("create settlement: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error().Err(err).
			Str("key", key).
			Str("partner_ref", reference).
			Msg("partner accepted transfer but local commit failed, reconciliation required")
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.remember(ctx, key, resultJSON)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("from", sender.AccountNumber).
		Str("to", req.ToAccountNumber).
		Str("partner", s.cfg.PartnerCode).
		Str("partner_ref", reference).
		Int64("amount", req.Amount).
		Int64("fee", fee).
		Msg("external transfer settled")

	return result, nil
}

// transferWithRetry retries transport and trust failures under the
// configured policy. A signed rejection ends the attempt immediately, and
// so does msg passing its ExpiredAt: the partner must refuse it by then.
func (s *SettlementServiceImpl) transferWithRetry(ctx context.Context, msg domain.TransferMessage) (*domain.TransferReceipt, error) {
	var receipt *domain.TransferReceipt
	attempt := 0
	retryUnlessExpired := func(err error) error {
		if !s.now().Before(msg.ExpiredAt) {
			return backoff.Permanent(err)
		}
		return err
	}
	err := backoff.Retry(func() error {
		if !s.now().Before(msg.ExpiredAt) {
			return backoff.Permanent(apperror.UntrustedResponse("request expired before the partner answered"))
		}
		attempt++
		r, err := s.partner.Transfer(ctx, msg)
		if err != nil {
			if retryable(err) {
				s.log.Warn().Err(err).Int("attempt", attempt).Str("key", msg.IdempotencyKey).Msg("partner transfer attempt failed")
				return retryUnlessExpired(err)
			}
			return backoff.Permanent(err)
		}
		if r.IdempotencyKey != msg.IdempotencyKey {
			return retryUnlessExpired(apperror.UntrustedResponse("receipt answers a different request"))
		}
		switch r.Status {
		case domain.ReceiptAccepted:
			receipt = r
			return nil
		case domain.ReceiptRejected:
			return backoff.Permanent(apperror.SettlementRejected(r.Reason))
		}
		return backoff.Permanent(apperror.UntrustedResponse(fmt.Sprintf("unknown receipt status %q", r.Status)))
	}, s.retryPolicy(ctx))
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// QueryPartnerAccount asks the partner who owns accountNumber.
func (s *SettlementServiceImpl) QueryPartnerAccount(ctx context.Context, accountNumber string) (*domain.AccountInfo, error) {
	if !domain.ValidAccountNumber(accountNumber) {
		return nil, apperror.Validation(fmt.Sprintf("account number must be %d digits", domain.AccountNumberLength))
	}

	var info *domain.AccountInfo
	err := backoff.Retry(func() error {
		r, err := s.partner.QueryAccount(ctx, accountNumber)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if r.AccountNumber != accountNumber {
			return apperror.UntrustedResponse("answer names a different account")
		}
		info = r
		return nil
	}, s.retryPolicy(ctx))
	if err != nil {
		return nil, err
	}
	if !info.Found {
		return nil, apperror.RecipientNotFound()
	}
	return info, nil
}

// ReceiveDeposit credits a local account on the partner's signed request and
// returns a signed receipt. A replayed idempotency key returns the original
// receipt without crediting again.
func (s *SettlementServiceImpl) ReceiveDeposit(ctx context.Context, env *domain.SignedEnvelope) (*domain.SignedEnvelope, error) {
	var msg domain.TransferMessage
	if err := s.signer.Open(env, &msg); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !now.Before(msg.ExpiredAt) {
		return nil, apperror.UntrustedResponse("message expired")
	}
	if msg.IdempotencyKey == "" {
		return nil, apperror.Validation("idempotency key is required")
	}

	key := domain.BuildSettlementKey(domain.SettlementInbound, s.cfg.PartnerCode, msg.IdempotencyKey)
	if stored, err := s.lookup(ctx, key); err != nil {
		return nil, err
	} else if stored != nil {
		return unmarshalEnvelope(stored)
	}

	if msg.Amount <= 0 {
		return s.reject(msg, domain.RejectInvalidAmount, now)
	}
	feePayer, ok := msg.Payer.FeePayer()
	if !ok {
		return s.reject(msg, domain.RejectInvalidPayer, now)
	}
	if !domain.ValidAccountNumber(msg.ToAccountNumber) {
		return s.reject(msg, domain.RejectAccountNotFound, now)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accounts.GetByAccountNumberForUpdate(ctx, dbTx, msg.ToAccountNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return s.reject(msg, domain.RejectAccountNotFound, now)
	}

	var fee int64
	credit := msg.Amount
	if feePayer == domain.FeePayerReceiver {
		fee = s.fees.Rate.FeeFor(msg.Amount)
		credit -= fee
	}
	if _, err := s.accounts.Credit(ctx, dbTx, account.ID, credit); err != nil {
		return nil, passThrough("credit", err)
	}

	counterparty := msg.FromAccountNumber
	partnerRef := msg.IdempotencyKey
	txn := &domain.Transaction{
		ID:                        uuid.New(),
		Kind:                      domain.TransactionKindExternalIn,
		Amount:                    msg.Amount,
		Fee:                       fee,
		FeePayer:                  feePayer,
		ToAccountID:               &account.ID,
		CounterpartyAccountNumber: &counterparty,
		ExternalCounterpartyRef:   &partnerRef,
		Message:                   msg.Message,
		CreatedAt:                 now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	receipt, err := s.signer.Seal(domain.TransferReceipt{
		IdempotencyKey: msg.IdempotencyKey,
		Status:         domain.ReceiptAccepted,
		Reference:      txn.ID.String(),
		CreditedAmount: credit,
		CreatedAt:      now,
		ExpiredAt:      now.Add(s.cfg.MessageTTL),
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("seal receipt: %w", err))
	}
	receiptJSON, err := json.Marshal(receipt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal receipt: %w", err))
	}

	err = s.settlements.Create(ctx, dbTx, &domain.Settlement{
		IdempotencyKey:          key,
		Direction:               domain.SettlementInbound,
		PartnerCode:             s.cfg.PartnerCode,
		ExternalCounterpartyRef: partnerRef,
		TransactionID:           txn.ID,
		Amount:                  msg.Amount,
		ResponseJSON:            receiptJSON,
		CreatedAt:               now,
	})
	if err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			_ = dbTx.Rollback(ctx)
			return s.replayInbound(ctx, key)
		}
		return nil, apperror.InternalError(fmt.Errorf("create settlement: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.remember(ctx, key, receiptJSON)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("to", account.AccountNumber).
		Str("partner", s.cfg.PartnerCode).
		Str("partner_ref", partnerRef).
		Int64("amount", msg.Amount).
		Int64("credited", credit).
		Msg("inbound deposit credited")

	return receipt, nil
}

// AnswerAccountQuery tells the partner who owns one of our account numbers.
// Each signed query is answered once; the balance is never disclosed.
func (s *SettlementServiceImpl) AnswerAccountQuery(ctx context.Context, env *domain.SignedEnvelope) (*domain.SignedEnvelope, error) {
	var query domain.AccountQuery
	if err := s.signer.Open(env, &query); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !now.Before(query.ExpiredAt) {
		return nil, apperror.UntrustedResponse("message expired")
	}

	if s.nonces != nil {
		digest := sha256.Sum256([]byte(env.Signature))
		fresh, err := s.nonces.CheckAndSet(ctx, s.cfg.PartnerCode+":account-query", hex.EncodeToString(digest[:]), query.ExpiredAt.Sub(now))
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("check nonce: %w", err))
		}
		if !fresh {
			return nil, apperror.UntrustedResponse("message replayed")
		}
	}

	info := domain.AccountInfo{
		AccountNumber: query.AccountNumber,
		CreatedAt:     now,
		ExpiredAt:     now.Add(s.cfg.MessageTTL),
	}
	if domain.ValidAccountNumber(query.AccountNumber) {
		account, err := s.accounts.GetByAccountNumber(ctx, query.AccountNumber)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
		}
		if account != nil {
			info.Found = true
			info.DisplayName = account.DisplayName
		}
	}

	answer, err := s.signer.Seal(info)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("seal answer: %w", err))
	}
	return answer, nil
}

// reject answers an inbound transfer with a signed REJECTED receipt.
// Nothing is recorded, so a corrected retry with the same key can succeed.
func (s *SettlementServiceImpl) reject(msg domain.TransferMessage, reason string, now time.Time) (*domain.SignedEnvelope, error) {
	s.log.Warn().
		Str("key", msg.IdempotencyKey).
		Str("to", msg.ToAccountNumber).
		Str("reason", reason).
		Msg("inbound deposit rejected")

	receipt, err := s.signer.Seal(domain.TransferReceipt{
		IdempotencyKey: msg.IdempotencyKey,
		Status:         domain.ReceiptRejected,
		Reason:         reason,
		CreatedAt:      now,
		ExpiredAt:      now.Add(s.cfg.MessageTTL),
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("seal receipt: %w", err))
	}
	return receipt, nil
}

// lookup returns the stored response for key: Redis first, then the DB.
func (s *SettlementServiceImpl) lookup(ctx context.Context, key string) ([]byte, error) {
	if s.idempCache != nil {
		cached, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return cached, nil
		}
	}

	settlement, err := s.settlements.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if settlement == nil {
		return nil, nil
	}
	s.remember(ctx, key, settlement.ResponseJSON)
	return settlement.ResponseJSON, nil
}

func (s *SettlementServiceImpl) remember(ctx context.Context, key string, value []byte) {
	if s.idempCache == nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, value, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency result")
	}
}

func (s *SettlementServiceImpl) replayOutbound(ctx context.Context, key string) (*ports.TransferResult, error) {
	stored, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperror.Conflict(fmt.Errorf("settlement %s vanished after conflict", key))
	}
	return unmarshalTransferResult(stored)
}

func (s *SettlementServiceImpl) replayInbound(ctx context.Context, key string) (*domain.SignedEnvelope, error) {
	stored, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperror.Conflict(fmt.Errorf("settlement %s vanished after conflict", key))
	}
	return unmarshalEnvelope(stored)
}

func (s *SettlementServiceImpl) retryPolicy(ctx context.Context) backoff.BackOffContext {
	return backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(s.cfg.RetryInitialInterval, s.cfg.RetryMaxInterval), s.cfg.RetryMaxAttempts-1),
		ctx,
	)
}

// retryable reports whether another attempt might succeed.
func retryable(err error) bool {
	return apperror.Is(err, apperror.KindSettlementUnavailable) || apperror.Is(err, apperror.KindUntrustedResponse)
}

func unmarshalTransferResult(data []byte) (*ports.TransferResult, error) {
	var result ports.TransferResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal stored result: %w", err))
	}
	return &result, nil
}

func unmarshalEnvelope(data []byte) (*domain.SignedEnvelope, error) {
	var env domain.SignedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal stored receipt: %w", err))
	}
	return &env, nil
}
