// Package retry provides bounded exponential-backoff retry for the receiver's
// outbound API calls, with HTTP-aware classification of retryable failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// DefaultConfig returns the default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// HTTPError represents an HTTP error with its status code
type HTTPError struct {
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, err error) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Err: err}
}

// IsRetryableStatusCode returns true if the HTTP status code is worth
// retrying: throttling, timeouts, and server errors.
func IsRetryableStatusCode(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsRetryable classifies an error: HTTP errors retry on retryable status
// codes, everything else (network errors, timeouts) is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return IsRetryableStatusCode(httpErr.StatusCode)
	}
	return true
}

// Policy computes backoff delays for successive attempts.
type Policy struct {
	config Config
}

// NewPolicy creates a retry policy, clamping nonsense values to defaults.
func NewPolicy(config Config) *Policy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 60 * time.Second
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = 2.0
	}
	return &Policy{config: config}
}

// MaxAttempts returns the attempt bound.
func (p *Policy) MaxAttempts() int {
	return p.config.MaxAttempts
}

// Delay returns the backoff before the given attempt (1-based): the first
// retry waits InitialDelay, growing by BackoffMultiplier and capped at
// MaxDelay.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.config.InitialDelay
	}
	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempt-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// Do executes fn with retries under the policy. Non-retryable errors stop
// immediately; context cancellation interrupts the backoff sleep.
func Do(ctx context.Context, policy *Policy, fn func() error) error {
	if policy == nil {
		policy = NewPolicy(DefaultConfig())
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts(); attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == policy.MaxAttempts() {
			break
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", policy.MaxAttempts(), lastErr)
}
