package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles command processing on a single FTP control connection
// using a token bucket.
//
// A nil *RateLimiter is valid and never limits, so callers can hold one
// unconditionally and only construct it when a limit is configured.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing commandsPerSecond sustained commands with
// bursts of up to burst commands.
//
// Special cases:
//   - commandsPerSecond = 0: returns nil (unlimited)
//   - burst = 0: burst defaults to commandsPerSecond
func New(commandsPerSecond, burst uint) *RateLimiter {
	if commandsPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = commandsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), int(burst)),
	}
}

// Allow reports whether a command may run now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

// Limit returns the configured sustained rate, or 0 for unlimited.
func (r *RateLimiter) Limit() float64 {
	if r == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}
