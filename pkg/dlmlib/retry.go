package dlmlib

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"strings"
	"syscall"
	"time"
)

// Retry policy for transient mid-download failures: three attempts with
// 1s, 2s, 4s delays, then the task fails.
const (
	DEF_MAX_RETRIES    = 3
	DEF_BASE_DELAY     = 1 * time.Second
	DEF_MAX_DELAY      = 30 * time.Second
	DEF_BACKOFF_FACTOR = 2.0
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxRetries    int           // Maximum number of retry attempts (0 = unlimited)
	BaseDelay     time.Duration // Initial delay before first retry
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns a RetryConfig with the engine defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    DEF_MAX_RETRIES,
		BaseDelay:     DEF_BASE_DELAY,
		MaxDelay:      DEF_MAX_DELAY,
		BackoffFactor: DEF_BACKOFF_FACTOR,
	}
}

// RetryState tracks the state of retry attempts for one segment worker.
type RetryState struct {
	Attempts     int           // Number of attempts made
	LastError    error         // Most recent error encountered
	LastAttempt  time.Time     // Time of last attempt
	TotalDelayed time.Duration // Cumulative time spent waiting between retries
}

// ErrorCategory classifies errors for retry decisions.
type ErrorCategory int

const (
	ErrCategoryFatal       ErrorCategory = iota // Non-retryable errors (404, canceled)
	ErrCategoryRetryable                        // Transient errors (EOF, timeout, reset)
	ErrCategoryThrottled                        // Rate limiting errors (429, 503)
	ErrCategoryAuthExpired                      // 401/403/410; pause rather than fail
)

// ClassifyError determines how an error should be handled for retry
// purposes. Auth-expired errors are classified separately: they pause
// the task and request session renewal instead of burning retries.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryFatal
	}

	if IsAuthExpired(err) {
		return ErrCategoryAuthExpired
	}

	// Context cancellation is not retryable (user stopped download)
	if errors.Is(err, context.Canceled) {
		return ErrCategoryFatal
	}

	// EOF errors are retryable (connection dropped mid-transfer)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryRetryable
	}

	// Premature stream closure is retried; the range request resumes
	// from the current offset.
	if errors.Is(err, ErrShortDownload) {
		return ErrCategoryRetryable
	}

	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		switch srvErr.StatusCode {
		case 429, 503:
			return ErrCategoryThrottled
		case 500, 502, 504:
			return ErrCategoryRetryable
		}
		return ErrCategoryFatal
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrCategoryRetryable
		}
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		if isRetryableErrno(sysErr) {
			return ErrCategoryRetryable
		}
	}

	// String-based pattern matching for wrapped errors
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection reset",
		"connection refused",
		"broken pipe",
		"timeout",
		"eof",
		"temporary failure",
		"no such host",
		"network is unreachable",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryRetryable
		}
	}

	throttlePatterns := []string{
		"too many requests",
		"service unavailable",
		"rate limit",
		"throttl",
	}
	for _, pattern := range throttlePatterns {
		if strings.Contains(errStr, pattern) {
			return ErrCategoryThrottled
		}
	}

	// Unknown errors are treated as fatal to avoid infinite retry loops
	return ErrCategoryFatal
}

// CalculateBackoff computes the delay before the next retry attempt.
func (c *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Exponential backoff: baseDelay * (backoffFactor ^ (attempt-1))
	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))

	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}

	return time.Duration(delay)
}

// ShouldRetry determines if another retry attempt should be made.
func (c *RetryConfig) ShouldRetry(state *RetryState, err error) bool {
	category := ClassifyError(err)

	if category == ErrCategoryFatal || category == ErrCategoryAuthExpired {
		return false
	}

	// Check retry limit (0 = unlimited)
	if c.MaxRetries > 0 && state.Attempts >= c.MaxRetries {
		return false
	}

	return true
}

// WaitForRetry blocks until the retry delay has elapsed or context is
// canceled.
func (c *RetryConfig) WaitForRetry(ctx context.Context, state *RetryState, category ErrorCategory) error {
	delay := c.CalculateBackoff(state.Attempts)

	// Throttled errors get double the normal delay
	if category == ErrCategoryThrottled {
		delay *= 2
		if delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		state.TotalDelayed += delay
		return nil
	}
}
