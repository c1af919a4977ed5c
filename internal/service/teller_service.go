package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TellerServiceImpl implements ports.TellerService.
type TellerServiceImpl struct {
	accounts   ports.AccountRepository
	txRepo     ports.TransactionRepository
	audit      ports.AuditService
	transactor ports.DBTransactor
	now        func() time.Time
	log        zerolog.Logger
}

// NewTellerService creates a new TellerServiceImpl.
func NewTellerService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
	audit ports.AuditService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *TellerServiceImpl {
	return &TellerServiceImpl{
		accounts:   accounts,
		txRepo:     txRepo,
		audit:      audit,
		transactor: transactor,
		now:        time.Now,
		log:        log,
	}
}

// Deposit credits a customer's account with cash taken at the counter.
func (s *TellerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.InvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accounts.GetByAccountNumberForUpdate(ctx, dbTx, req.AccountNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.AccountNotFound()
	}

	balance, err := s.accounts.Credit(ctx, dbTx, account.ID, req.Amount)
	if err != nil {
		return nil, passThrough("credit", err)
	}

	txn := &domain.Transaction{
		ID:          uuid.New(),
		Kind:        domain.TransactionKindDeposit,
		Amount:      req.Amount,
		ToAccountID: &account.ID,
		Message:     req.Message,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("account_number", account.AccountNumber).
		Str("employee_id", req.EmployeeID.String()).
		Int64("amount", req.Amount).
		Msg("teller deposit completed")

	details, _ := json.Marshal(map[string]any{
		"account_number": account.AccountNumber,
		"amount":         req.Amount,
	})
	s.audit.Log(ctx, &domain.AuditLog{
		ActorID:      &req.EmployeeID,
		ActorRole:    domain.RoleEmployee,
		Action:       domain.AuditActionTellerDeposit,
		ResourceType: "transaction",
		ResourceID:   txn.ID.String(),
		Details:      string(details),
		IPAddress:    req.IPAddress,
	})

	return &ports.TransferResult{Transaction: txn, Balances: domain.BalancePair{ToAfter: balance}}, nil
}
