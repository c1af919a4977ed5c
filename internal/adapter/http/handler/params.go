package handler

import (
	"strconv"

	"internet-banking-core/internal/adapter/http/dto"
	"internet-banking-core/internal/adapter/http/middleware"
	"internet-banking-core/internal/core/ports"
	"internet-banking-core/pkg/apperror"
	"internet-banking-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// subject returns the authenticated caller, writing 401 when absent.
func subject(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.SubjectID(c)
	if !ok {
		response.Error(c, apperror.Unauthorized())
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the :id route parameter, writing 400 when malformed.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and sanitizes a request body, writing 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

// pagination reads page and page_size query parameters.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func tokenIssued(t *ports.TokenIssued) dto.TokenIssuedResponse {
	return dto.TokenIssuedResponse{Kind: string(t.Kind), ExpiresAt: t.ExpiresAt}
}
