package utils

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Error codes - business logic errors (4xx)
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeRateLimited = "RATE_LIMITED"

	// Server errors (5xx)
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeDatabaseError = "DATABASE_ERROR"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse is the standard success response format
type SuccessResponse struct {
	Success bool  `json:"success"`
	Data    any   `json:"data,omitempty"`
	Meta    *Meta `json:"meta,omitempty"`
}

// Meta contains pagination and other metadata
type Meta struct {
	Total int64 `json:"total,omitempty"`
	Page  int   `json:"page,omitempty"`
	Limit int   `json:"limit,omitempty"`
}

// RequestIDKey is the key for request ID in context
const RequestIDKey = "request_id"

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// WithRequestID adds request ID to error response
func (e ErrorResponse) WithRequestID(reqID string) ErrorResponse {
	e.Error.RequestID = reqID
	return e
}

// NewSuccessResponse creates a new success response
func NewSuccessResponse(data any) SuccessResponse {
	return SuccessResponse{
		Success: true,
		Data:    data,
	}
}

// WithMeta adds metadata to success response
func (s SuccessResponse) WithMeta(meta *Meta) SuccessResponse {
	s.Meta = meta
	return s
}

// RespondWithError sends error response
func RespondWithError(c *gin.Context, status int, code, message string) {
	reqID := c.GetString(RequestIDKey)
	if reqID == "" {
		reqID = uuid.New().String()[:8]
	}

	response := NewErrorResponse(code, message).WithRequestID(reqID)
	c.JSON(status, response)
}

// RespondWithNotFound sends 404
func RespondWithNotFound(c *gin.Context, resource string) {
	RespondWithError(c, http.StatusNotFound, ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource))
}

// RespondWithRateLimited sends 429
func RespondWithRateLimited(c *gin.Context, retryAfter time.Duration) {
	reqID := c.GetString(RequestIDKey)
	c.Header("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
	response := NewErrorResponse(ErrCodeRateLimited, "Too many requests").
		WithRequestID(reqID)
	c.JSON(http.StatusTooManyRequests, response)
}

// RespondWithSuccess sends success response
func RespondWithSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

// Middleware for request ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()[:8]
		}
		c.Set(RequestIDKey, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// PaginationParams extracts pagination from query params
func PaginationParams(c *gin.Context) (page, limit int, offset int) {
	page = 1
	limit = 20

	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}

	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = min(l, 100) // Max limit
	}

	offset = (page - 1) * limit
	return
}

// Response helpers for list endpoints
func PaginatedResponse(c *gin.Context, data any, total int64, page, limit int) {
	c.JSON(http.StatusOK, NewSuccessResponse(data).WithMeta(&Meta{
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}
