package auth

import (
	"bot-bridge/domain"
	"bot-bridge/errors"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// keyCacheSize bounds the verified-key outcomes kept in memory.
	keyCacheSize = 1024
	// Argon2 derivations allowed per second for keys not seen before.
	derivationRate  = 5
	derivationBurst = 10
)

// Authenticator checks the credential of request-surface producers.
// An API key is accepted for any sender; a bearer token only for the sender
// named by its subject. With neither configured every request passes.
//
// API key outcomes are cached by digest so a repeated key, good or bad, costs
// one derivation. Keys not seen before share a derivation budget.
type Authenticator struct {
	apiKeyHash string
	tokens     *Tokens

	compare     func(key, encodedHash string) (bool, error)
	derivations *rate.Limiter

	mu       sync.Mutex
	verified map[string]bool
}

func NewAuthenticator(apiKeyHash, jwtSecret string) *Authenticator {
	a := &Authenticator{
		apiKeyHash:  strings.TrimSpace(apiKeyHash),
		compare:     CompareKey,
		derivations: rate.NewLimiter(rate.Limit(derivationRate), derivationBurst),
		verified:    make(map[string]bool),
	}
	if jwtSecret != "" {
		a.tokens = NewTokens(jwtSecret)
	}
	return a
}

func (a *Authenticator) Enabled() bool {
	return a.apiKeyHash != "" || a.tokens != nil
}

// Authorize verifies the X-API-Key value or the Authorization header for sender.
func (a *Authenticator) Authorize(apiKey, authorization, sender string) error {
	if !a.Enabled() {
		return nil
	}
	if apiKey != "" && a.apiKeyHash != "" {
		return a.checkKey(apiKey)
	}
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || a.tokens == nil {
		return errors.ErrMissingCredential
	}
	claims, err := a.tokens.Validate(strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if domain.NormalizeKey(claims.Subject) != domain.NormalizeKey(sender) {
		return fmt.Errorf("%w: token subject %q cannot post as %q", errors.ErrInvalidCredential, claims.Subject, sender)
	}
	return nil
}

func (a *Authenticator) checkKey(apiKey string) error {
	sum := sha256.Sum256([]byte(apiKey))
	digest := hex.EncodeToString(sum[:])

	a.mu.Lock()
	ok, seen := a.verified[digest]
	a.mu.Unlock()
	if !seen {
		if !a.derivations.Allow() {
			return errors.ErrTooManyAttempts
		}
		var err error
		ok, err = a.compare(apiKey, a.apiKeyHash)
		if err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err)
		}
		a.remember(digest, ok)
	}
	if !ok {
		return errors.ErrInvalidCredential
	}
	return nil
}

func (a *Authenticator) remember(digest string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.verified) >= keyCacheSize {
		clear(a.verified)
	}
	a.verified[digest] = ok
}
