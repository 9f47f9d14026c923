package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	// Backoff strategy to use
	Backoff BackoffStrategy
	// RateLimitBackoff replaces Backoff after a rate_limit error when set
	RateLimitBackoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	// Context for cancellation of the wait between attempts
	Context context.Context
	// Logger for retry attempts
	Logger logger.Logger
}

// NewPolicy returns the policy shared by item downloads and account fetches:
// a fixed number of attempts separated by a constant delay.
func NewPolicy(maxAttempts int, delay time.Duration, log logger.Logger) *Config {
	return &Config{
		MaxAttempts:      maxAttempts,
		Backoff:          &ConstantBackoff{Delay: delay},
		RateLimitBackoff: DefaultRateLimitBackoff(),
		RetryIf:          DefaultRetryIf,
		Context:          context.Background(),
		Logger:           log,
	}
}

// WithContext returns a copy of the config bound to ctx
func (c *Config) WithContext(ctx context.Context) *Config {
	cp := *c
	cp.Context = ctx
	return &cp
}

// WithMaxAttempts returns a copy of the config with a different attempt budget
func (c *Config) WithMaxAttempts(n int) *Config {
	cp := *c
	cp.MaxAttempts = n
	return &cp
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errs.IsRetryableError(err)
}

// ExhaustedError is returned when every attempt failed
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes an operation with retry logic
func Do(op Operation, cfg *Config) error {
	_, err := DoCount(op, cfg)
	return err
}

// DoCount is Do that also reports how many attempts were made
func DoCount(op Operation, cfg *Config) (int, error) {
	if cfg == nil {
		cfg = NewPolicy(3, time.Second, logger.NewNopLogger())
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return attempt, nil
		}

		if !retryIf(err) {
			return attempt, err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return attempt, &ExhaustedError{Attempts: attempt, Err: err}
		}

		backoff := cfg.Backoff
		if cfg.RateLimitBackoff != nil && errs.IsType(err, errs.ErrorTypeRateLimit) {
			backoff = cfg.RateLimitBackoff
		}
		var delay time.Duration
		if backoff != nil {
			delay = backoff.NextDelay(attempt)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WithError(err).WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"delay":        delay,
			"max_attempts": cfg.MaxAttempts,
		})

		if werr := Wait(ctx, delay); werr != nil {
			return attempt, fmt.Errorf("retry cancelled (%v): %w", werr, err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
