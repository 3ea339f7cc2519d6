package response

import (
	"errors"
	"net/http"
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRequestID is the gin context key holding the request id.
const CtxRequestID = "request_id"

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success   bool               `json:"success"`
	ErrorCode string             `json:"error_code"`
	ErrorKind apperror.ErrorKind `json:"error_kind"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id"`
	Timestamp string             `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	success(c, http.StatusOK, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	success(c, http.StatusCreated, data)
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: now(),
	})
}

// Error sends an error response. AppErrors keep their status and kind,
// anything else becomes a 500 without leaking the cause.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "SYS_000"
	if appErr, ok := asAppError(err); ok {
		status = appErr.HTTPStatus
		code = appErr.Code
	}

	res := apperror.ResultOf(err)
	c.JSON(status, ErrorResponse{
		ErrorCode: code,
		ErrorKind: res.ErrorKind,
		Message:   res.Message,
		RequestID: getRequestID(c),
		Timestamp: now(),
	})
}

func asAppError(err error) (*apperror.AppError, bool) {
	var appErr *apperror.AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get(CtxRequestID); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
