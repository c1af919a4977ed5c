package handler

import (
	"internet-banking-core/internal/adapter/http/dto"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// RecipientHandler handles saved payee endpoints.
type RecipientHandler struct {
	recipientSvc ports.RecipientService
}

// NewRecipientHandler creates a new RecipientHandler.
func NewRecipientHandler(recipientSvc ports.RecipientService) *RecipientHandler {
	return &RecipientHandler{recipientSvc: recipientSvc}
}

// List handles GET /api/v1/recipients.
func (h *RecipientHandler) List(c *gin.Context) {
	ownerID, ok := subject(c)
	if !ok {
		return
	}

	recipients, err := h.recipientSvc.List(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, recipients)
}

// Save handles POST /api/v1/recipients.
func (h *RecipientHandler) Save(c *gin.Context) {
	ownerID, ok := subject(c)
	if !ok {
		return
	}

	var req dto.SaveRecipientRequest
	if !bindJSON(c, &req) {
		return
	}

	recipient, err := h.recipientSvc.Save(c.Request.Context(), ports.SaveRecipientRequest{
		OwnerID:       ownerID,
		AccountNumber: req.AccountNumber,
		MnemonicName:  req.MnemonicName,
		BankCode:      req.BankCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, recipient)
}

// Rename handles PUT /api/v1/recipients/:id.
func (h *RecipientHandler) Rename(c *gin.Context) {
	ownerID, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req dto.RenameRecipientRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.recipientSvc.Rename(c.Request.Context(), id, ownerID, req.MnemonicName); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"id": id, "mnemonic_name": req.MnemonicName})
}

// Delete handles DELETE /api/v1/recipients/:id.
func (h *RecipientHandler) Delete(c *gin.Context) {
	ownerID, ok := subject(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.recipientSvc.Delete(c.Request.Context(), id, ownerID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"id": id, "deleted": true})
}
