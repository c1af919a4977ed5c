package service

import (
	"context"
	"fmt"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	accounts ports.AccountRepository
	txRepo   ports.TransactionRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	accounts ports.AccountRepository,
	txRepo ports.TransactionRepository,
) ports.ReportingService {
	return &reportingService{
		accounts: accounts,
		txRepo:   txRepo,
	}
}

// GetAccount returns the account with its committed balance.
func (s *reportingService) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.AccountNotFound()
	}
	return account, nil
}

// ResolveAccountNumber looks up a local account by its number.
func (s *reportingService) ResolveAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if !domain.ValidAccountNumber(accountNumber) {
		return nil, apperror.Validation(fmt.Sprintf("account number must be %d digits", domain.AccountNumberLength))
	}
	account, err := s.accounts.GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.AccountNotFound()
	}
	return account, nil
}

// ListTransactions returns a paginated list of transactions, newest first.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Kind != nil {
		switch *params.Kind {
		case domain.TransactionKindInternal, domain.TransactionKindExternalIn,
			domain.TransactionKindExternalOut, domain.TransactionKindDeposit:
		default:
			return nil, 0, apperror.Validation(fmt.Sprintf("unknown transaction kind %q", *params.Kind))
		}
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}
