package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"internet-banking-core/internal/core/domain"
	"internet-banking-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records successful money-moving and session-ending requests.
// Teller deposits are audited by the teller service itself.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}

		action, resourceType := mapRouteToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if id, ok := SubjectID(c); ok {
			entry.ActorID = &id
			entry.ActorRole = Role(c)
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

func mapRouteToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/v1/transfers/internal" && method == http.MethodPost:
		return domain.AuditActionInternalTransfer, "transaction"
	case route == "/api/v1/transfers/external" && method == http.MethodPost:
		return domain.AuditActionExternalTransfer, "transaction"
	case route == "/api/v1/invoices/:id/pay" && method == http.MethodPost:
		return domain.AuditActionInvoicePay, "invoice"
	case route == "/api/v1/invoices/:id" && method == http.MethodDelete:
		return domain.AuditActionInvoiceDelete, "invoice"
	case route == "/api/external/deposit" && method == http.MethodPost:
		return domain.AuditActionInboundDeposit, "settlement"
	case route == "/api/v1/auth/logout" && method == http.MethodPost:
		return domain.AuditActionLogout, "session"
	}
	return "", ""
}
