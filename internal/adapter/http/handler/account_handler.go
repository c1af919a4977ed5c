package handler

import (
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's own account and history.
type AccountHandler struct {
	reportingSvc ports.ReportingService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(reportingSvc ports.ReportingService) *AccountHandler {
	return &AccountHandler{reportingSvc: reportingSvc}
}

// GetMe handles GET /api/v1/accounts/me.
func (h *AccountHandler) GetMe(c *gin.Context) {
	accountID, ok := subject(c)
	if !ok {
		return
	}

	account, err := h.reportingSvc.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, account)
}

// ListTransactions handles GET /api/v1/transactions.
func (h *AccountHandler) ListTransactions(c *gin.Context) {
	accountID, ok := subject(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	params := ports.TransactionListParams{
		AccountID: accountID,
		Page:      page,
		PageSize:  pageSize,
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.TransactionKind(k)
		params.Kind = &kind
	}

	txns, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, txns, total, page, pageSize)
}
