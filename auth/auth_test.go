package auth

import (
	"bot-bridge/errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	key := "agent-key-Tr0pSûr!"

	hash, err := HashKey(key)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := CompareKey(key, hash)
	req.NoError(err)
	req.True(match)

	// Given a wrong key
	match, err = CompareKey("wrong-key", hash)
	req.NoError(err)
	req.False(match)
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := CompareKey("key", "$bcrypt$whatever")

	req.ErrorIs(err, errors.ErrInvalidHash)
}

func TestAuthenticator_OpenWhenUnconfigured(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator("", "")

	req.False(authenticator.Enabled())
	req.NoError(authenticator.Authorize("", "", "luna"))
}

func TestAuthenticator_APIKey(t *testing.T) {
	req := require.New(t)
	hash, err := HashKey("s3cret")
	req.NoError(err)
	authenticator := NewAuthenticator(hash, "")

	// Then the right key posts as anyone
	req.NoError(authenticator.Authorize("s3cret", "", "bobo"))
	// Then a wrong key is rejected
	req.ErrorIs(authenticator.Authorize("nope", "", "bobo"), errors.ErrInvalidCredential)
	// Then no key at all is a missing credential
	req.ErrorIs(authenticator.Authorize("", "", "bobo"), errors.ErrMissingCredential)
}

func TestAuthenticator_BearerSubjectMustMatchSender(t *testing.T) {
	req := require.New(t)
	secret := "a-long-enough-signing-secret"
	authenticator := NewAuthenticator("", secret)
	token, err := NewTokens(secret).Generate("luna", "bot", time.Hour)
	req.NoError(err)

	// When the token subject posts as itself
	req.NoError(authenticator.Authorize("", "Bearer "+token, "Luna"))

	// When it posts as someone else
	err = authenticator.Authorize("", "Bearer "+token, "enfield")
	req.ErrorIs(err, errors.ErrInvalidCredential)
	req.True(errors.Is(err, errors.ErrAuth))
}

func TestAuthenticator_RejectsForeignOrExpiredTokens(t *testing.T) {
	req := require.New(t)
	authenticator := NewAuthenticator("", "server-secret")

	foreign, err := NewTokens("other-secret").Generate("luna", "bot", time.Hour)
	req.NoError(err)
	expired, err := NewTokens("server-secret").Generate("luna", "bot", -time.Minute)
	req.NoError(err)

	req.ErrorIs(authenticator.Authorize("", "Bearer "+foreign, "luna"), errors.ErrInvalidCredential)
	req.ErrorIs(authenticator.Authorize("", "Bearer "+expired, "luna"), errors.ErrInvalidCredential)
	req.ErrorIs(authenticator.Authorize("", "Basic abc", "luna"), errors.ErrMissingCredential)
}

func TestFrameLimiter(t *testing.T) {
	req := require.New(t)
	now := time.Now()

	// Given two frames per second with a burst of two
	limiter := NewFrameLimiter(2, 2)

	req.True(limiter.AllowAt(now))
	req.True(limiter.AllowAt(now))
	req.False(limiter.AllowAt(now))
	req.True(limiter.AllowAt(now.Add(time.Second)))

	// Given no limit configured
	var unlimited *FrameLimiter = NewFrameLimiter(0, 0)
	req.True(unlimited.Allow())
}

func TestRequestValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		request any
		wantErr bool
	}{
		{"Valid message", &MessageRequest{Sender: "luna", Content: "hi"}, false},
		{"Empty content left to the log", &MessageRequest{Sender: "luna"}, false},
		{"Missing sender", &MessageRequest{Content: "hi"}, true},
		{"Legacy without text", &LegacyMessageRequest{From: "bobo"}, true},
		{"Reaction without emoji", &ReactionRequest{Sender: "bobo"}, true},
		{"Sender too long", &MessageRequest{Sender: strings.Repeat("a", 65), Content: "hi"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.request)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrMalformedPayload)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestAuthenticator_RepeatedKeysDeriveOnce(t *testing.T) {
	req := require.New(t)
	// Given an authenticator counting key derivations
	hash, err := HashKey("s3cret")
	req.NoError(err)
	authenticator := NewAuthenticator(hash, "")
	derivations := 0
	authenticator.compare = func(key, encodedHash string) (bool, error) {
		derivations++
		return CompareKey(key, encodedHash)
	}

	// When the same bad and good keys are presented repeatedly
	for range 5 {
		req.ErrorIs(authenticator.Authorize("nope", "", "bobo"), errors.ErrInvalidCredential)
		req.NoError(authenticator.Authorize("s3cret", "", "bobo"))
	}

	// Then each key was derived only once
	req.Equal(2, derivations)
}

func TestAuthenticator_UnseenKeysShareDerivationBudget(t *testing.T) {
	req := require.New(t)
	// Given an authenticator whose derivations always fail
	authenticator := NewAuthenticator("argon2id$unused", "")
	derivations := 0
	authenticator.compare = func(string, string) (bool, error) {
		derivations++
		return false, nil
	}

	// When more distinct keys arrive than the burst allows
	var limited int
	for i := range derivationBurst + 5 {
		err := authenticator.Authorize(fmt.Sprintf("guess-%d", i), "", "luna")
		req.Error(err)
		if errors.Is(err, errors.ErrTooManyAttempts) {
			limited++
		}
	}

	// Then the surplus is rejected without deriving
	req.LessOrEqual(derivations, derivationBurst+1)
	req.GreaterOrEqual(limited, 4)
	req.ErrorIs(errors.ErrTooManyAttempts, errors.ErrAuth)
}
