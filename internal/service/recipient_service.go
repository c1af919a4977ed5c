package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"

	"github.com/google/uuid"
)

type recipientService struct {
	recipients    ports.RecipientRepository
	accounts      ports.AccountRepository
	localBankCode string
}

// NewRecipientService creates a new saved payee service.
func NewRecipientService(
	recipients ports.RecipientRepository,
	accounts ports.AccountRepository,
	localBankCode string,
) ports.RecipientService {
	return &recipientService{
		recipients:    recipients,
		accounts:      accounts,
		localBankCode: localBankCode,
	}
}

// Save stores or renames a payee. Local payees must exist; their display
// name is the default mnemonic. External payees need an explicit mnemonic.
func (s *recipientService) Save(ctx context.Context, req ports.SaveRecipientRequest) (*domain.Recipient, error) {
	if !domain.ValidAccountNumber(req.AccountNumber) {
		return nil, apperror.Validation(fmt.Sprintf("account number must be %d digits", domain.AccountNumberLength))
	}

	bankCode := strings.ToUpper(strings.TrimSpace(req.BankCode))
	if bankCode == s.localBankCode {
		bankCode = ""
	}
	mnemonic := strings.TrimSpace(req.MnemonicName)

	if bankCode == "" {
		account, err := s.accounts.GetByAccountNumber(ctx, req.AccountNumber)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if account == nil {
			return nil, apperror.RecipientNotFound()
		}
		if account.ID == req.OwnerID {
			return nil, apperror.Validation("cannot save your own account as a recipient")
		}
		if mnemonic == "" {
			mnemonic = account.DisplayName
		}
	}
	if mnemonic == "" {
		return nil, apperror.Validation("mnemonic_name is required for external recipients")
	}

	now := time.Now().UTC()
	saved, err := s.recipients.Upsert(ctx, &domain.Recipient{
		ID:            uuid.New(),
		OwnerID:       req.OwnerID,
		AccountNumber: req.AccountNumber,
		MnemonicName:  mnemonic,
		BankCode:      bankCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return saved, nil
}

func (s *recipientService) List(ctx context.Context, ownerID uuid.UUID) ([]domain.Recipient, error) {
	recipients, err := s.recipients.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return recipients, nil
}

func (s *recipientService) Rename(ctx context.Context, id, ownerID uuid.UUID, mnemonic string) error {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return apperror.Validation("mnemonic_name must not be empty")
	}
	ok, err := s.recipients.Rename(ctx, id, ownerID, mnemonic)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !ok {
		return apperror.NotFound("recipient")
	}
	return nil
}

func (s *recipientService) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	ok, err := s.recipients.Delete(ctx, id, ownerID)
	if err != nil {
		return apperror.InternalError(err)
	}
	if !ok {
		return apperror.NotFound("recipient")
	}
	return nil
}
