package auth

import (
	"time"

	"golang.org/x/time/rate"
)

// FrameLimiter bounds the inbound frame rate of one connection.
// A nil limiter allows everything.
type FrameLimiter struct {
	limiter *rate.Limiter
}

// NewFrameLimiter returns nil when perSecond is not positive.
func NewFrameLimiter(perSecond float64, burst int) *FrameLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &FrameLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *FrameLimiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// AllowAt is Allow with an explicit clock, for tests.
func (l *FrameLimiter) AllowAt(t time.Time) bool {
	if l == nil {
		return true
	}
	return l.limiter.AllowN(t, 1)
}
