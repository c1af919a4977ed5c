package handler

import (
	"errors"
	"io"
	"strconv"

	"internet-banking-core/internal/adapter/http/dto"
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	invoiceSvc ports.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceSvc ports.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceSvc: invoiceSvc}
}

// Create handles POST /api/v1/invoices.
func (h *InvoiceHandler) Create(c *gin.Context) {
	creatorID, ok := subject(c)
	if !ok {
		return
	}

	var req dto.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceSvc.Create(c.Request.Context(), ports.CreateInvoiceRequest{
		CreatorID:          creatorID,
		PayerAccountNumber: req.PayerAccountNumber,
		Amount:             req.Amount,
		Message:            req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, invoice)
}

// List handles GET /api/v1/invoices?filter=created|received|all&is_paid=&include_deleted=.
func (h *InvoiceHandler) List(c *gin.Context) {
	customerID, ok := subject(c)
	if !ok {
		return
	}

	page, pageSize := pagination(c)
	params := ports.InvoiceListParams{
		CustomerID: customerID,
		Filter:     domain.InvoiceFilter(c.DefaultQuery("filter", string(domain.InvoiceFilterAll))),
		Page:       page,
		PageSize:   pageSize,
	}
	if p := c.Query("is_paid"); p != "" {
		v, err := strconv.ParseBool(p)
		if err != nil {
			response.Error(c, apperror.Validation("is_paid must be a boolean"))
			return
		}
		params.IsPaid = &v
	}
	params.IncludeDeleted, _ = strconv.ParseBool(c.Query("include_deleted"))

	invoices, total, err := h.invoiceSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, invoices, total, page, pageSize)
}

// Get handles GET /api/v1/invoices/:id.
func (h *InvoiceHandler) Get(c *gin.Context) {
	requesterID, ok := subject(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	invoice, err := h.invoiceSvc.Get(c.Request.Context(), invoiceID, requesterID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, invoice)
}

// Update handles PUT /api/v1/invoices/:id.
func (h *InvoiceHandler) Update(c *gin.Context) {
	requesterID, ok := subject(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.UpdateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceSvc.Update(c.Request.Context(), ports.UpdateInvoiceRequest{
		InvoiceID:   invoiceID,
		RequesterID: requesterID,
		Amount:      req.Amount,
		Message:     req.Message,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, invoice)
}

// Delete handles DELETE /api/v1/invoices/:id. The reason body is optional.
func (h *InvoiceHandler) Delete(c *gin.Context) {
	requesterID, ok := subject(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.DeleteInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if err := h.invoiceSvc.Delete(c.Request.Context(), invoiceID, requesterID, req.Reason); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"id": invoiceID, "status": domain.InvoiceStatusDeleted})
}

// RequestOTP handles POST /api/v1/invoices/:id/otp.
func (h *InvoiceHandler) RequestOTP(c *gin.Context) {
	payerID, ok := subject(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	issued, err := h.invoiceSvc.RequestPaymentOTP(c.Request.Context(), invoiceID, payerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, tokenIssued(issued))
}

// Pay handles POST /api/v1/invoices/:id/pay.
func (h *InvoiceHandler) Pay(c *gin.Context) {
	payerID, ok := subject(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.PayInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.invoiceSvc.Pay(c.Request.Context(), invoiceID, payerID, req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
