package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Categories. Every error surfaced by the relay wraps exactly one of them.
var (
	ErrValidation  = errors.New("validation error")
	ErrAuth        = errors.New("authentication error")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence error")
)

var (
	ErrUnknownSender     = fmt.Errorf("%w: unknown sender", ErrValidation)
	ErrEmptyContent      = fmt.Errorf("%w: empty content", ErrValidation)
	ErrContentTooLong    = fmt.Errorf("%w: content too long", ErrValidation)
	ErrMalformedPayload  = fmt.Errorf("%w: malformed payload", ErrValidation)
	ErrInvalidEmoji      = fmt.Errorf("%w: invalid emoji", ErrValidation)
	ErrSenderMismatch    = fmt.Errorf("%w: sender does not match connection", ErrValidation)
	ErrNotJoined         = fmt.Errorf("%w: connection has not joined", ErrValidation)
	ErrMessageNotFound   = fmt.Errorf("%w: message", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("%w: user", ErrNotFound)
	ErrConnectionUnknown = fmt.Errorf("%w: connection", ErrNotFound)
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrAuth)
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", ErrAuth)
	ErrTooManyAttempts   = fmt.Errorf("%w: too many key attempts", ErrAuth)
	ErrSearchDisabled    = fmt.Errorf("%w: search index disabled", ErrNotFound)

	ErrWorkerPanic    = errors.New("worker panic")
	ErrHubStopped     = errors.New("hub stopped")
	ErrEmptyWords     = errors.New("no words have been found")
	ErrInvalidHash    = errors.New("invalid hash format")
	ErrUnknownBackend = errors.New("unknown storage backend")
	ErrBackpressure   = errors.New("connection buffer full")
	ErrRateLimited    = errors.New("inbound frame rate exceeded")
)

// Is and As are re-exported so callers importing this package under the
// name "errors" keep the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }

// HTTPStatus maps an error to the status returned by the request surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrHubStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a machine-readable reason for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSender):
		return "unknown_sender"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, ErrContentTooLong):
		return "content_too_long"
	case errors.Is(err, ErrInvalidEmoji):
		return "invalid_emoji"
	case errors.Is(err, ErrSenderMismatch):
		return "sender_mismatch"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrValidation):
		return "invalid_request"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrAuth):
		return "invalid_credential"
	case errors.Is(err, ErrMessageNotFound):
		return "message_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrHubStopped):
		return "unavailable"
	default:
		return "internal"
	}
}
