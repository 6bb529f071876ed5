// Package ratelimit paces upstream API calls and retries rate-limited requests
// with exponential backoff.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests and slows down after consecutive rate-limit errors
type Limiter struct {
	limiter           *rate.Limiter
	mu                sync.Mutex
	consecutiveErrors int
	currentDelay      time.Duration
	config            *Config
}

// Config holds limiter configuration
type Config struct {
	RequestDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
	MaxAttempts       int
}

// DefaultConfig returns the default limiter configuration
func DefaultConfig() *Config {
	return &Config{
		RequestDelay:      200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       5,
	}
}

// New creates a limiter; a nil config uses DefaultConfig
func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rps := float64(time.Second) / float64(cfg.RequestDelay)

	return &Limiter{
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		currentDelay: cfg.RequestDelay,
		config:       cfg,
	}
}

// Wait blocks until the limiter allows the next request
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// handleError reports whether the error is retryable and how long to back off
func (l *Limiter) handleError(err error) (shouldRetry bool, waitTime time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	errStr := strings.ToLower(err.Error())
	if !strings.Contains(errStr, "429") && !strings.Contains(errStr, "rate limit") {
		return false, 0
	}

	l.consecutiveErrors++

	waitTime = time.Duration(math.Min(
		float64(l.currentDelay)*math.Pow(l.config.BackoffMultiplier, float64(l.consecutiveErrors-1)),
		float64(l.config.MaxDelay),
	))

	// Slow the steady-state rate while the upstream is throttling us
	if waitTime > l.currentDelay {
		l.currentDelay = waitTime
		l.limiter.SetLimit(rate.Limit(float64(time.Second) / float64(waitTime)))
	}

	return l.consecutiveErrors < l.config.MaxAttempts, waitTime
}

// success resets the backoff state after a request goes through
func (l *Limiter) success() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.consecutiveErrors > 0 {
		l.consecutiveErrors = 0
		l.currentDelay = l.config.RequestDelay
		l.limiter.SetLimit(rate.Limit(float64(time.Second) / float64(l.config.RequestDelay)))
	}
}

// ExecuteWithRetry runs fn under the limiter, retrying rate-limited calls
// with backoff up to MaxAttempts. Non-rate-limit errors fail immediately.
func (l *Limiter) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt < l.config.MaxAttempts; attempt++ {
		if err := l.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		err := fn()
		if err == nil {
			l.success()
			return nil
		}

		shouldRetry, waitTime := l.handleError(err)
		if !shouldRetry {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded", l.config.MaxAttempts)
}
