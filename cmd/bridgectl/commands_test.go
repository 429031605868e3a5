package main

import (
	"bot-bridge/auth"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"bridgectl"}, args...))
	return out.String(), err
}

func TestTokenCommand_ClaimsFollowFlags(t *testing.T) {
	req := require.New(t)

	// When a token is issued for bobo with a custom role and lifetime
	out, err := run(t, "token", "--secret", "relay-secret", "--sender", "bobo", "--role", "agent", "--ttl", "1h")
	req.NoError(err)

	// Then it validates against the same secret with matching claims
	claims, err := auth.NewTokens("relay-secret").Validate(strings.TrimSpace(out))
	req.NoError(err)
	req.Equal("bobo", claims.Subject)
	req.Equal("agent", claims.Role)
	req.WithinDuration(time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommand_RequiresSender(t *testing.T) {
	_, err := run(t, "token", "--secret", "relay-secret")
	require.Error(t, err)
}

func TestHashKeyCommand(t *testing.T) {
	req := require.New(t)

	out, err := run(t, "hash-key", "s3cret")
	req.NoError(err)
	ok, err := auth.CompareKey("s3cret", strings.TrimSpace(out))
	req.NoError(err)
	req.True(ok)

	_, err = run(t, "hash-key")
	req.ErrorContains(err, "missing KEY")
}

type capturedRequest struct {
	path          string
	apiKey        string
	authorization string
	body          auth.MessageRequest
}

func relayStub(t *testing.T, status int, answer string) (*httptest.Server, chan capturedRequest) {
	t.Helper()
	captured := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body auth.MessageRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		captured <- capturedRequest{
			path:          r.URL.Path,
			apiKey:        r.Header.Get("X-API-Key"),
			authorization: r.Header.Get("Authorization"),
			body:          body,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(answer))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestSendCommand_FlagsToRequest(t *testing.T) {
	t.Setenv("BRIDGE_API_KEY", "")
	t.Setenv("BRIDGE_TOKEN", "")

	tests := []struct {
		name          string
		flags         []string
		apiKey        string
		authorization string
	}{
		{name: "no credential"},
		{name: "api key", flags: []string{"--api-key", "s3cret"}, apiKey: "s3cret"},
		{name: "bearer token", flags: []string{"--token", "abc.def"}, authorization: "Bearer abc.def"},
		{
			name:          "both",
			flags:         []string{"--api-key", "s3cret", "--token", "abc.def"},
			apiKey:        "s3cret",
			authorization: "Bearer abc.def",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			// Given a relay accepting the message
			srv, captured := relayStub(t, http.StatusCreated, `{"id":1}`)

			// When bridgectl sends through a base URL with a trailing slash
			args := append([]string{"send", "--url", srv.URL + "/", "--from", "luna", "--text", "hello"}, tt.flags...)
			out, err := run(t, args...)
			req.NoError(err)
			req.Contains(out, "sent")

			// Then the request carries the body and credentials from the flags
			got := <-captured
			req.Equal("/message", got.path)
			req.Equal(auth.MessageRequest{Sender: "luna", Content: "hello"}, got.body)
			req.Equal(tt.apiKey, got.apiKey)
			req.Equal(tt.authorization, got.authorization)
		})
	}
}

func TestSendCommand_ReportsRelayFailure(t *testing.T) {
	req := require.New(t)
	// Given a relay refusing the credential
	srv, _ := relayStub(t, http.StatusUnauthorized,
		`{"error":"authentication error: invalid credential","code":"invalid_credential"}`)

	// When bridgectl sends
	_, err := run(t, "send", "--url", srv.URL, "--from", "luna", "--text", "hello", "--api-key", "wrong")

	// Then the status and code are surfaced
	req.ErrorContains(err, "relay answered 401")
	req.ErrorContains(err, "invalid_credential")
}
