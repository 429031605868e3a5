package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusAndCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{nil, http.StatusOK, "internal"},
		{ErrEmptyContent, http.StatusBadRequest, "empty_content"},
		{fmt.Errorf("wrapped: %w", ErrUnknownSender), http.StatusBadRequest, "unknown_sender"},
		{ErrMissingCredential, http.StatusUnauthorized, "missing_credential"},
		{ErrInvalidCredential, http.StatusUnauthorized, "invalid_credential"},
		{ErrTooManyAttempts, http.StatusTooManyRequests, "too_many_attempts"},
		{ErrMessageNotFound, http.StatusNotFound, "message_not_found"},
		{ErrHubStopped, http.StatusServiceUnavailable, "unavailable"},
		{New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		req := require.New(t)
		req.Equal(tt.status, HTTPStatus(tt.err), "%v", tt.err)
		req.Equal(tt.code, Code(tt.err), "%v", tt.err)
	}
}
