package handler

import (
	"internet-banking-core/internal/adapter/http/dto"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// TellerHandler handles employee-only endpoints.
type TellerHandler struct {
	tellerSvc ports.TellerService
}

// NewTellerHandler creates a new TellerHandler.
func NewTellerHandler(tellerSvc ports.TellerService) *TellerHandler {
	return &TellerHandler{tellerSvc: tellerSvc}
}

// Deposit handles POST /api/v1/employee/deposits.
func (h *TellerHandler) Deposit(c *gin.Context) {
	employeeID, ok := subject(c)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.tellerSvc.Deposit(c.Request.Context(), ports.DepositRequest{
		EmployeeID:    employeeID,
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Message:       req.Message,
		IPAddress:     c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}
