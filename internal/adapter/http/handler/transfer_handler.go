package handler

import (
	"internet-banking-core/internal/adapter/http/dto"
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler handles internal and external transfer endpoints.
type TransferHandler struct {
	transferSvc   ports.TransferService
	settlementSvc ports.SettlementService
	reportingSvc  ports.ReportingService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(
	transferSvc ports.TransferService,
	settlementSvc ports.SettlementService,
	reportingSvc ports.ReportingService,
) *TransferHandler {
	return &TransferHandler{
		transferSvc:   transferSvc,
		settlementSvc: settlementSvc,
		reportingSvc:  reportingSvc,
	}
}

// RequestToken handles POST /api/v1/transfers/token.
// The token itself is delivered out of band.
func (h *TransferHandler) RequestToken(c *gin.Context) {
	ownerID, ok := subject(c)
	if !ok {
		return
	}

	issued, err := h.transferSvc.RequestTransferToken(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, tokenIssued(issued))
}

// Internal handles POST /api/v1/transfers/internal.
func (h *TransferHandler) Internal(c *gin.Context) {
	fromID, ok := subject(c)
	if !ok {
		return
	}

	var req dto.InternalTransferRequest
	if !bindJSON(c, &req) {
		return
	}

	receiver, err := h.reportingSvc.ResolveAccountNumber(c.Request.Context(), req.ToAccountNumber)
	if err != nil {
		if apperror.Is(err, apperror.KindAccountNotFound) {
			err = apperror.RecipientNotFound()
		}
		response.Error(c, err)
		return
	}

	result, err := h.transferSvc.ExecuteInternalTransfer(c.Request.Context(), ports.InternalTransferRequest{
		FromAccountID: fromID,
		ToAccountID:   receiver.ID,
		Amount:        req.Amount,
		Message:       req.Message,
		FeePayer:      domain.FeePayer(req.FeePayer),
		AuthToken:     req.Token,
		SaveRecipient: req.SaveRecipient,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// External handles POST /api/v1/transfers/external.
func (h *TransferHandler) External(c *gin.Context) {
	fromID, ok := subject(c)
	if !ok {
		return
	}

	var req dto.ExternalTransferRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.settlementSvc.ExecuteExternalTransfer(c.Request.Context(), ports.ExternalTransferRequest{
		FromAccountID:   fromID,
		ToAccountNumber: req.ToAccountNumber,
		Amount:          req.Amount,
		Message:         req.Message,
		FeePayer:        domain.FeePayer(req.FeePayer),
		AuthToken:       req.Token,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// QueryPartnerAccount handles POST /api/v1/interbank/accounts/query.
func (h *TransferHandler) QueryPartnerAccount(c *gin.Context) {
	if _, ok := subject(c); !ok {
		return
	}

	var req dto.AccountQueryRequest
	if !bindJSON(c, &req) {
		return
	}

	info, err := h.settlementSvc.QueryPartnerAccount(c.Request.Context(), req.AccountNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, info)
}
