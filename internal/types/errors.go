package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants. All layers MUST use these constants instead
// of hardcoded strings so that retry classification and HTTP mapping stay
// consistent.
const (
	// Contract violations (fatal for the digest build, never retried).
	ErrCodeContractMembershipMissing ErrorCode = "contract_membership_missing"

	// Validation (400)
	ErrCodeValidationInvalidJob   ErrorCode = "validation_invalid_job"
	ErrCodeValidationInvalidEmail ErrorCode = "validation_invalid_email"
	ErrCodeValidationMissingParam ErrorCode = "validation_missing_parameter"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Not Found (404)
	ErrCodeNotFoundRoom   ErrorCode = "not_found_room"
	ErrCodeNotFoundEvent  ErrorCode = "not_found_event"
	ErrCodeNotFoundPusher ErrorCode = "not_found_pusher"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeInternalRender        ErrorCode = "internal_render_error"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"

	// Recipient-specific terminal failure
	ErrCodeEmailBlocked ErrorCode = "email_blocked"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case s == string(ErrCodeEmailBlocked):
		return http.StatusForbidden
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether an error represents a transient failure that the
// worker may retry by re-publishing the job. Contract violations, validation
// failures, and blocked recipients are permanent; store and provider outages
// are not.
func Retryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		// Unclassified errors are assumed transient so that infrastructure
		// hiccups (timeouts, connection resets) get another chance.
		return true
	}

	s := string(appErr.Code)
	switch {
	case strings.HasPrefix(s, "contract_"),
		strings.HasPrefix(s, "validation_"),
		strings.HasPrefix(s, "auth_"),
		s == string(ErrCodeEmailBlocked):
		return false
	case strings.HasPrefix(s, "not_found_"):
		// Unknown rooms/events will not appear by waiting; a digest that
		// references them is permanently broken.
		return false
	default:
		return true
	}
}

// AppError is the standard application error type used throughout the service.
// All domain errors should be expressed as AppError to enable consistent
// formatting, retry classification, and HTTP status mapping.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details,
// typically the room/user identifiers involved in the failure.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
