package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies failures crossing package boundaries.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "VALIDATION_ERROR"
	CodeUnknownTimeframe ErrorCode = "UNKNOWN_TIMEFRAME"
	CodeInvalidStep      ErrorCode = "INVALID_STEP"
	CodeUpstreamFetch    ErrorCode = "UPSTREAM_FETCH_ERROR"
	CodePersistence      ErrorCode = "PERSISTENCE_ERROR"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// AppError is the typed error returned by the footprint engine and its services.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Reason is a short machine readable tag, e.g. "invalid_side".
	Reason string `json:"reason,omitempty"`
	Cause  error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error code to a response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeUnknownTimeframe, CodeInvalidStep:
		return http.StatusBadRequest
	case CodeUpstreamFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the caller may retry with backoff.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case CodeUpstreamFetch, CodePersistence:
		return true
	default:
		return false
	}
}

func New(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(reason, message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Reason: reason}
}

func UnknownTimeframe(value string) *AppError {
	return &AppError{Code: CodeUnknownTimeframe, Message: fmt.Sprintf("unsupported timeframe %q", value), Reason: "invalid_timeframe"}
}

func InvalidStep(step float64) *AppError {
	return &AppError{Code: CodeInvalidStep, Message: fmt.Sprintf("price step must be greater than 0, got %v", step), Reason: "invalid_step"}
}

func UpstreamFetch(source string, cause error) *AppError {
	return &AppError{Code: CodeUpstreamFetch, Message: "fetch from " + source, Cause: cause}
}

func Persistence(op string, cause error) *AppError {
	return &AppError{Code: CodePersistence, Message: op, Cause: cause}
}

// CodeOf extracts the code of the first AppError in the chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus returns the status for any error, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
