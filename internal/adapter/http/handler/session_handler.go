package handler

import (
	"internet-banking-core/internal/adapter/http/dto"
	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionHandler handles session rotation and logout.
// Credential checks happen upstream; this surface only rotates tokens.
type SessionHandler struct {
	sessionSvc ports.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionSvc ports.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *SessionHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	role := domain.Role(req.Role)
	if role == "" {
		role = domain.RoleCustomer
	}

	session, err := h.sessionSvc.Refresh(c.Request.Context(), req.RefreshToken, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.SessionResponse{
		AccessToken:      session.AccessToken,
		AccessExpiresAt:  session.AccessExpiresAt,
		RefreshToken:     session.RefreshToken,
		RefreshExpiresAt: session.RefreshExpiresAt,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.sessionSvc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"logged_out": true})
}
