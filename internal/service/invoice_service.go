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

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// InvoiceServiceImpl implements ports.InvoiceService.
type InvoiceServiceImpl struct {
	accounts   ports.AccountRepository
	invoices   ports.InvoiceRepository
	txRepo     ports.TransactionRepository
	tokens     ports.TokenAuthority
	notifier   ports.NotificationDispatcher
	transactor ports.DBTransactor
	otpTTL     time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewInvoiceService creates a new InvoiceServiceImpl.
func NewInvoiceService(
	accounts ports.AccountRepository,
	invoices ports.InvoiceRepository,
	txRepo ports.TransactionRepository,
	tokens ports.TokenAuthority,
	notifier ports.NotificationDispatcher,
	transactor ports.DBTransactor,
	otpTTL time.Duration,
	log zerolog.Logger,
) *InvoiceServiceImpl {
	return &InvoiceServiceImpl{
		accounts:   accounts,
		invoices:   invoices,
		txRepo:     txRepo,
		tokens:     tokens,
		notifier:   notifier,
		transactor: transactor,
		otpTTL:     otpTTL,
		now:        time.Now,
		log:        log,
	}
}

// Create opens an invoice addressed to the owner of PayerAccountNumber.
func (s *InvoiceServiceImpl) Create(ctx context.Context, req ports.CreateInvoiceRequest) (*domain.Invoice, error) {
	if req.Amount <= 0 {
		return nil, apperror.InvalidAmount()
	}

	creator, err := s.accounts.GetByID(ctx, req.CreatorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get creator: %w", err))
	}
	if creator == nil {
		return nil, apperror.AccountNotFound()
	}

	payer, err := s.accounts.GetByAccountNumber(ctx, req.PayerAccountNumber)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payer: %w", err))
	}
	if payer == nil {
		return nil, apperror.AccountNotFound()
	}
	if payer.ID == creator.ID {
		return nil, apperror.SelfInvoice()
	}

	now := s.now().UTC()
	invoice := &domain.Invoice{
		ID:        uuid.New(),
		CreatorID: creator.ID,
		PayerID:   payer.ID,
		Amount:    req.Amount,
		Message:   req.Message,
		Status:    domain.InvoiceStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.invoices.Create(ctx, nil, invoice); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create invoice: %w", err))
	}

	s.log.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("creator_id", creator.ID.String()).
		Str("payer_id", payer.ID.String()).
		Int64("amount", invoice.Amount).
		Msg("invoice created")

	s.notifier.Dispatch(ctx, domain.InvoiceCreated{
		InvoiceID: invoice.ID,
		CreatorID: invoice.CreatorID,
		PayerID:   invoice.PayerID,
		Amount:    invoice.Amount,
	})

	return invoice, nil
}

// Update changes amount and message of an open invoice. Creator only.
func (s *InvoiceServiceImpl) Update(ctx context.Context, req ports.UpdateInvoiceRequest) (*domain.Invoice, error) {
	if req.Amount <= 0 {
		return nil, apperror.InvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	invoice, err := s.invoices.GetByIDForUpdate(ctx, dbTx, req.InvoiceID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock invoice: %w", err))
	}
	if invoice == nil {
		return nil, apperror.InvoiceNotFound()
	}
	if invoice.CreatorID != req.RequesterID {
		return nil, apperror.Forbidden()
	}
	if err := terminalError(invoice); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ok, err := s.invoices.UpdateOpen(ctx, dbTx, invoice.ID, req.Amount, req.Message, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update invoice: %w", err))
	}
	if !ok {
		return nil, apperror.Conflict(fmt.Errorf("invoice %s left OPEN while locked", invoice.ID))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	invoice.Amount = req.Amount
	invoice.Message = req.Message
	invoice.UpdatedAt = now
	return invoice, nil
}

// Pay settles an open invoice from the payer's account. No fee is charged.
func (s *InvoiceServiceImpl) Pay(ctx context.Context, invoiceID, payerID uuid.UUID, otp string) (*ports.TransferResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The row lock serializes concurrent payers: the loser sees PAID.
	invoice, err := s.invoices.GetByIDForUpdate(ctx, dbTx, invoiceID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock invoice: %w", err))
	}
	if invoice == nil {
		return nil, apperror.InvoiceNotFound()
	}
	if invoice.PayerID != payerID {
		return nil, apperror.Forbidden()
	}
	if err := terminalError(invoice); err != nil {
		return nil, err
	}

	if err := s.tokens.ConsumeScopedTx(ctx, dbTx, otp, domain.TokenKindPayInvoice, payerID, invoice.ID.String()); err != nil {
		return nil, err
	}

	locked, err := s.accounts.LockForUpdate(ctx, dbTx, invoice.PayerID, invoice.CreatorID)
	if err != nil {
		return nil, passThrough("lock accounts", err)
	}
	if locked[invoice.PayerID] == nil {
		return nil, apperror.AccountNotFound()
	}
	creator := locked[invoice.CreatorID]
	if creator == nil {
		return nil, apperror.RecipientNotFound()
	}

	now := s.now().UTC()
	ok, err := s.invoices.MarkPaid(ctx, dbTx, invoice.ID, now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark invoice paid: %w", err))
	}
	if !ok {
		return nil, apperror.AlreadyPaid()
	}

	balances, err := s.accounts.Transfer(ctx, dbTx, invoice.PayerID, invoice.CreatorID, invoice.Amount)
	if err != nil {
		return nil, passThrough("transfer", err)
	}

	counterparty := creator.AccountNumber
	txn := &domain.Transaction{
		ID:                        uuid.New(),
		Kind:                      domain.TransactionKindInternal,
		Amount:                    invoice.Amount,
		FromAccountID:             &invoice.PayerID,
		ToAccountID:               &invoice.CreatorID,
		CounterpartyAccountNumber: &counterparty,
		InvoiceID:                 &invoice.ID,
		Message:                   invoice.Message,
		CreatedAt:                 now,
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("tx_id", txn.ID.String()).
		Int64("amount", invoice.Amount).
		Msg("invoice paid")

	s.notifier.Dispatch(ctx, domain.InvoicePaid{InvoiceID: invoice.ID})

	return &ports.TransferResult{Transaction: txn, Balances: *balances}, nil
}

// Delete cancels an open invoice. Creator only.
func (s *InvoiceServiceImpl) Delete(ctx context.Context, invoiceID, requesterID uuid.UUID, reason string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	invoice, err := s.invoices.GetByIDForUpdate(ctx, dbTx, invoiceID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock invoice: %w", err))
	}
	if invoice == nil {
		return apperror.InvoiceNotFound()
	}
	if invoice.CreatorID != requesterID {
		return apperror.Forbidden()
	}
	if err := terminalError(invoice); err != nil {
		return err
	}

	ok, err := s.invoices.MarkDeleted(ctx, dbTx, invoice.ID, reason, s.now().UTC())
	if err != nil {
		return apperror.InternalError(fmt.Errorf("mark invoice deleted: %w", err))
	}
	if !ok {
		return apperror.AlreadyDeleted()
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("invoice_id", invoice.ID.String()).Msg("invoice deleted")

	s.notifier.Dispatch(ctx, domain.InvoiceCancelled{
		InvoiceID: invoice.ID,
		Reason:    reason,
		CreatorID: invoice.CreatorID,
		PayerID:   invoice.PayerID,
	})
	return nil
}

// Get returns an invoice to either of its parties.
func (s *InvoiceServiceImpl) Get(ctx context.Context, invoiceID, requesterID uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get invoice: %w", err))
	}
	if invoice == nil {
		return nil, apperror.InvoiceNotFound()
	}
	if !invoice.IsParty(requesterID) {
		return nil, apperror.Forbidden()
	}
	return invoice, nil
}

// List returns a page of the customer's invoices. DELETED invoices are
// hidden unless IncludeDeleted is set.
func (s *InvoiceServiceImpl) List(ctx context.Context, params ports.InvoiceListParams) ([]domain.Invoice, int64, error) {
	switch params.Filter {
	case "":
		params.Filter = domain.InvoiceFilterAll
	case domain.InvoiceFilterAll, domain.InvoiceFilterCreated, domain.InvoiceFilterReceived:
	default:
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown invoice filter %q", params.Filter))
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	invoices, total, err := s.invoices.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list invoices: %w", err))
	}
	return invoices, total, nil
}

// RequestPaymentOTP issues a PAY_INVOICE token to the invoice's payer. The
// token pays this invoice only.
func (s *InvoiceServiceImpl) RequestPaymentOTP(ctx context.Context, invoiceID, payerID uuid.UUID) (*ports.TokenIssued, error) {
	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get invoice: %w", err))
	}
	if invoice == nil {
		return nil, apperror.InvoiceNotFound()
	}
	if invoice.PayerID != payerID {
		return nil, apperror.Forbidden()
	}
	if err := terminalError(invoice); err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueScoped(ctx, domain.TokenKindPayInvoice, payerID, invoice.ID.String(), s.otpTTL)
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(ctx, domain.OTPIssued{
		OwnerID:   payerID,
		Kind:      token.Kind,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		InvoiceID: &invoice.ID,
	})

	return &ports.TokenIssued{Kind: token.Kind, ExpiresAt: token.ExpiresAt}, nil
}

func terminalError(invoice *domain.Invoice) error {
	switch invoice.Status {
	case domain.InvoiceStatusPaid:
		return apperror.AlreadyPaid()
	case domain.InvoiceStatusDeleted:
		return apperror.AlreadyDeleted()
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
