package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrorType classifies a failure for retry decisions.
type ErrorType int

const (
	TimeoutError ErrorType = iota
	NetworkError
	ProtocolError
	RateLimitError
	InternalError
)

// RetryableError carries an ErrorType so Retry can decide whether to try again.
type RetryableError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Errorf builds a RetryableError of the given type.
func Errorf(t ErrorType, format string, args ...any) *RetryableError {
	err := fmt.Errorf(format, args...)
	return &RetryableError{Type: t, Message: err.Error(), Err: errors.Unwrap(err)}
}

func (e *RetryableError) Error() string {
	return e.Message
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is transient.
func (e *RetryableError) IsRetryable() bool {
	return e.Type == TimeoutError || e.Type == NetworkError || e.Type == RateLimitError
}

// RetryConfig controls attempts and backoff.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay      time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        2,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// Retry runs fn until it succeeds, returns a non-retryable error, exhausts
// config.MaxRetries, or ctx is done.
func Retry[T any](ctx context.Context, fn RetryableFunc[T], config *RetryConfig) (T, error) {
	var zero T
	var lastErr error
	if config == nil {
		config = DefaultRetryConfig()
	}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if !isRetryableError(err) {
			return zero, err
		}
		lastErr = err

		if attempt < config.MaxRetries {
			timer := time.NewTimer(calculateBackoffDelay(attempt, config))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			}
		}
	}

	return zero, lastErr
}

// isRetryableError treats untyped errors as transient, except context
// cancellation which is final.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.IsRetryable()
	}
	return true
}

func calculateBackoffDelay(attempt int, config *RetryConfig) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffMultiplier, float64(attempt)))
	if delay > config.MaxDelay {
		return config.MaxDelay
	}
	return delay
}

// WithExponentialBackoff wraps fn so every call goes through Retry.
func WithExponentialBackoff[T any](fn RetryableFunc[T], config *RetryConfig) RetryableFunc[T] {
	return func(ctx context.Context) (T, error) {
		return Retry(ctx, fn, config)
	}
}
