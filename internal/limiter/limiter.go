// Package limiter defines interfaces and implementations for credential-check rate limiting.
package limiter

import (
	"context"
	"time"
)

// Limiter controls verification attempts and temporary lockouts per login.
type Limiter interface {
	// Allow reports whether verification is currently allowed and optional retry-after.
	Allow(ctx context.Context, login string) (bool, time.Duration, error)
	// Success resets counters after a successful verification.
	Success(ctx context.Context, login string) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, login string) (bool, time.Duration, error)
}
