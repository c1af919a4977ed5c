package handler

import (
	"context"
	"errors"
	"net/http"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// InterbankHandler serves the partner bank. Requests and successful
// responses are bare signed envelopes, not the usual response wrapper.
type InterbankHandler struct {
	settlementSvc ports.SettlementService
}

// NewInterbankHandler creates a new InterbankHandler.
func NewInterbankHandler(settlementSvc ports.SettlementService) *InterbankHandler {
	return &InterbankHandler{settlementSvc: settlementSvc}
}

// Deposit handles POST /api/external/deposit.
func (h *InterbankHandler) Deposit(c *gin.Context) {
	h.serve(c, h.settlementSvc.ReceiveDeposit)
}

// QueryAccount handles POST /api/external/query-account.
func (h *InterbankHandler) QueryAccount(c *gin.Context) {
	h.serve(c, h.settlementSvc.AnswerAccountQuery)
}

func (h *InterbankHandler) serve(
	c *gin.Context,
	op func(ctx context.Context, env *domain.SignedEnvelope) (*domain.SignedEnvelope, error),
) {
	var env domain.SignedEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	reply, err := op(c.Request.Context(), &env)
	if err != nil {
		// An envelope we refuse to trust is the caller's authentication failure.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Kind == apperror.KindUntrustedResponse {
			err = apperror.New(apperror.KindUnauthorized, appErr.Message)
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, reply)
}
