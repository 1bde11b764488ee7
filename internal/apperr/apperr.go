// Package apperr defines the gateway error taxonomy.
//
// Every error surfaced by the gateway belongs to one of five kinds:
// configuration (fatal at startup), validation (4xx), rate limit (429),
// provider (upstream), internal (500). Handlers translate an AppError
// into the HTTP response; the original cause stays attached for logs.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry/response decisions.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindRateLimit     Kind = "rate_limit"
	KindProvider      Kind = "provider"
	KindInternal      Kind = "internal"
)

// AppError is the standard application error.
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`

	// RetryAfterSeconds is set on rate-limit errors so the HTTP layer
	// can emit a Retry-After header.
	RetryAfterSeconds int `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail returns a copy with extra detail, leaving the base value intact.
func (e *AppError) WithDetail(detail string) *AppError {
	ne := *e
	ne.Detail = detail
	return &ne
}

// WithCause returns a copy carrying the original error.
func (e *AppError) WithCause(err error) *AppError {
	ne := *e
	ne.Err = err
	return &ne
}

// WithRetryAfter returns a copy carrying a Retry-After hint in seconds.
func (e *AppError) WithRetryAfter(seconds int) *AppError {
	ne := *e
	ne.RetryAfterSeconds = seconds
	return &ne
}

// FromError normalizes any error into an AppError. Unknown errors become
// ErrInternal with the cause preserved for logging.
func FromError(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return ErrInternal.WithCause(err)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind == k
	}
	return false
}

// Configuration errors. Fatal at startup, never retried.
var (
	ErrConfigMissing = &AppError{
		Kind:       KindConfiguration,
		Code:       "CONFIG_MISSING",
		Message:    "required configuration value is missing",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// Validation errors. 4xx, not retried, logged at warn.
var (
	ErrBadRequest = &AppError{
		Kind:       KindValidation,
		Code:       "BAD_REQUEST",
		Message:    "the request is malformed or missing parameters",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingHeaders = &AppError{
		Kind:       KindValidation,
		Code:       "MISSING_HEADERS",
		Message:    "required delivery headers are missing",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidSignature = &AppError{
		Kind:       KindValidation,
		Code:       "INVALID_SIGNATURE",
		Message:    "webhook signature verification failed",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidState = &AppError{
		Kind:       KindValidation,
		Code:       "INVALID_STATE",
		Message:    "the oauth state is invalid, expired or already used",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrOAuthDenied = &AppError{
		Kind:       KindValidation,
		Code:       "OAUTH_DENIED",
		Message:    "the provider reported an authorization error",
		HTTPStatus: http.StatusBadRequest,
	}
)

// Rate limit errors. 429, retryable after the indicated delay.
var (
	ErrRateLimited = &AppError{
		Kind:       KindRateLimit,
		Code:       "RATE_LIMITED",
		Message:    "request rate limit exceeded, retry later",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrQuotaExceeded = &AppError{
		Kind:       KindRateLimit,
		Code:       "QUOTA_EXCEEDED",
		Message:    "the subscription tier quota is exhausted",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// Provider errors. Upstream 4xx/5xx or network failure; retried only by the
// retry wrapper's backoff policy.
var (
	ErrProvider = &AppError{
		Kind:       KindProvider,
		Code:       "PROVIDER_ERROR",
		Message:    "the upstream provider returned an error",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrProviderRateLimited = &AppError{
		Kind:       KindProvider,
		Code:       "PROVIDER_RATE_LIMITED",
		Message:    "the upstream provider reported an exhausted quota",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

// Internal errors. 500, logged with a correlation id, never expose internals.
var (
	ErrInternal = &AppError{
		Kind:       KindInternal,
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// IsProviderRateLimit reports whether err carries the upstream quota signal,
// which the retry wrapper treats differently from other provider failures.
func IsProviderRateLimit(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code == ErrProviderRateLimited.Code
	}
	return false
}
