package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the machine-readable failure category returned to callers.
type ErrorKind string

const (
	KindValidation           ErrorKind = "validation_error"
	KindAccountNotFound      ErrorKind = "account_not_found"
	KindCounterpartyNotFound ErrorKind = "counterparty_not_found"
	KindInsufficientFunds    ErrorKind = "insufficient_funds"
	KindResourceNotFound     ErrorKind = "resource_not_found"
	KindConcurrencyConflict  ErrorKind = "concurrency_conflict"
	KindUnexpectedFailure    ErrorKind = "unexpected_failure"
	KindForbidden            ErrorKind = "forbidden"
	KindUnauthorized         ErrorKind = "unauthorized"
	KindRateLimited          ErrorKind = "rate_limited"
	KindDuplicate            ErrorKind = "duplicate_operation"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string    `json:"error_code"`
	Kind       ErrorKind `json:"error_kind"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, kind ErrorKind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind ErrorKind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf reports the ErrorKind carried by err. Errors that are not an
// AppError are unexpected failures.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpectedFailure
}

// Result is the failure shape of an operation outcome.
type Result struct {
	Success   bool      `json:"success"`
	ErrorKind ErrorKind `json:"error_kind"`
	Message   string    `json:"message"`
}

// ResultOf renders err as an operation result. The wrapped cause is never included.
func ResultOf(err error) Result {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return Result{ErrorKind: appErr.Kind, Message: appErr.Message}
	}
	return Result{ErrorKind: KindUnexpectedFailure, Message: "Internal server error"}
}

// ---- Ledger (LED) ----

func ErrInsufficientFunds() *AppError {
	return New("LED_001", KindInsufficientFunds, "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", KindValidation, "Amount must be positive with at most two decimal places", http.StatusBadRequest)
}

func ErrAccountNotFound(kind string) *AppError {
	return New("LED_003", KindAccountNotFound, fmt.Sprintf("%s account not found", kind), http.StatusNotFound)
}

func ErrCounterpartyNotFound(kind string) *AppError {
	return New("LED_004", KindCounterpartyNotFound, fmt.Sprintf("%s not found", kind), http.StatusNotFound)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_005", KindResourceNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrConcurrencyConflict(err error) *AppError {
	return Wrap("LED_006", KindConcurrencyConflict, "Concurrent update conflict, please retry", http.StatusConflict, err)
}

func ErrDuplicateOperation() *AppError {
	return New("LED_007", KindDuplicate, "Operation already in progress", http.StatusConflict)
}

func ErrAccountExists(kind string) *AppError {
	return New("LED_008", KindDuplicate, fmt.Sprintf("%s account already exists", kind), http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", KindUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden(message string) *AppError {
	return New("AUTH_002", KindForbidden, message, http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", KindUnexpectedFailure, "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindUnexpectedFailure, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_002-style validation error.
func Validation(message string) *AppError {
	return New("LED_002", KindValidation, message, http.StatusBadRequest)
}
