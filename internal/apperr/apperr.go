// Package apperr defines the error taxonomy shared across the service.
// Every error surfaced to a caller carries a stable code, a user-facing
// message, a suggested action, and a retry classification.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindAuthentication
	KindAuthorization
	KindDatabase
	KindNetwork
	KindPayment
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindDatabase:
		return "database"
	case KindNetwork:
		return "network"
	case KindPayment:
		return "payment"
	case KindRateLimit:
		return "rate_limit"
	}
	return "unknown"
}

type Error struct {
	Kind    Kind
	Code    string
	Message string // user-facing, safe to return to callers
	Action  string // suggested next step for the caller

	// Field names the offending input field for validation errors.
	Field string

	// GatewayCode carries the provider-specific code for payment errors.
	GatewayCode string

	Retryable  bool
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to the status the API layer returns.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNetwork:
		return http.StatusServiceUnavailable
	case KindRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func Validation(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "validation_failed",
		Message: message,
		Action:  "Correct the highlighted field and retry.",
		Field:   field,
	}
}

func NotFound(code, message string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    code,
		Message: message,
		Action:  "Check the identifier and retry.",
	}
}

func Authentication(message string) *Error {
	return &Error{
		Kind:    KindAuthentication,
		Code:    "authentication_failed",
		Message: message,
		Action:  "Supply valid credentials.",
	}
}

func Authorization(message string) *Error {
	return &Error{
		Kind:    KindAuthorization,
		Code:    "forbidden",
		Message: message,
		Action:  "Contact an administrator if you need access.",
	}
}

// Database wraps a storage failure. Storage errors are retryable by default.
func Database(err error) *Error {
	return &Error{
		Kind:      KindDatabase,
		Code:      "storage_error",
		Message:   "A temporary storage error occurred.",
		Action:    "Retry the request shortly.",
		Retryable: true,
		Err:       err,
	}
}

// Network wraps a transport failure. Callers mark retryability explicitly;
// an unmarked network error is not retried.
func Network(err error, retryable bool) *Error {
	return &Error{
		Kind:      KindNetwork,
		Code:      "network_error",
		Message:   "A network error occurred while contacting an upstream service.",
		Action:    "Retry the request shortly.",
		Retryable: retryable,
		Err:       err,
	}
}

// Payment wraps a gateway failure. Payment errors are never retried
// automatically, to avoid double-charging.
func Payment(gatewayCode, message string, err error) *Error {
	return &Error{
		Kind:        KindPayment,
		Code:        "payment_gateway_error",
		Message:     message,
		Action:      "Contact support with your reference number.",
		GatewayCode: gatewayCode,
		Err:         err,
	}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Code:       "rate_limited",
		Message:    "Too many requests.",
		Action:     "Slow down and retry after the indicated delay.",
		RetryAfter: retryAfter,
	}
}

// Wrap normalizes any error into the taxonomy. Typed errors pass through;
// bare errors are classified as storage failures, the dominant bare-error
// source in this service.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Database(err)
}

// IsRetryable reports whether the retry executor may re-run the failed
// operation. Untyped errors are treated as retryable storage failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return true
}
