package response

import (
	"errors"
	"net/http"
	"time"

	"internet-banking-core/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// PageResponse wraps a paginated list.
type PageResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

var statusByKind = map[apperror.Kind]int{
	apperror.KindInsufficientFunds:     http.StatusPaymentRequired,
	apperror.KindAccountNotFound:       http.StatusNotFound,
	apperror.KindRecipientNotFound:     http.StatusNotFound,
	apperror.KindInvoiceNotFound:       http.StatusNotFound,
	apperror.KindNotFound:              http.StatusNotFound,
	apperror.KindSelfTransfer:          http.StatusUnprocessableEntity,
	apperror.KindSelfInvoice:           http.StatusUnprocessableEntity,
	apperror.KindInvalidAmount:         http.StatusBadRequest,
	apperror.KindValidation:            http.StatusBadRequest,
	apperror.KindTokenInvalid:          http.StatusUnauthorized,
	apperror.KindTokenExpired:          http.StatusUnauthorized,
	apperror.KindTokenAlreadyUsed:      http.StatusUnauthorized,
	apperror.KindUnauthorized:          http.StatusUnauthorized,
	apperror.KindForbidden:             http.StatusForbidden,
	apperror.KindTooManyRequests:       http.StatusTooManyRequests,
	apperror.KindAlreadyPaid:           http.StatusConflict,
	apperror.KindAlreadyDeleted:        http.StatusConflict,
	apperror.KindConflict:              http.StatusConflict,
	apperror.KindUntrustedResponse:     http.StatusBadGateway,
	apperror.KindSettlementRejected:    http.StatusUnprocessableEntity,
	apperror.KindSettlementUnavailable: http.StatusServiceUnavailable,
	apperror.KindInternal:              http.StatusInternalServerError,
}

// StatusFor returns the HTTP status code for an error kind.
func StatusFor(kind apperror.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Page sends a 200 response carrying one page of items.
func Page(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	OK(c, PageResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Error sends an error response. Internal details of the wrapped error are
// never written to the client.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Kind != apperror.KindInternal {
		c.JSON(StatusFor(appErr.Kind), ErrorResponse{
			ErrorCode: string(appErr.Kind),
			Message:   appErr.Message,
			RequestID: getRequestID(c),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		ErrorCode: string(apperror.KindInternal),
		Message:   "Internal server error",
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
