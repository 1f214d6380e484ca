// Package resilience retries transient Flight failures with exponential
// backoff.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	Jitter        bool
	RetryableFunc func(error) bool
	OnRetry       func(attempt int, err error)
}

func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		Jitter:        true,
		RetryableFunc: Transient,
	}
}

// Transient reports whether err is worth retrying: the server was
// unreachable or briefly refused the call. Data errors never are.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.Aborted:
		return true
	default:
		return false
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// policy runs out of attempts. When ctx ends during a backoff the last error
// from fn is returned.
func Retry[T any](ctx context.Context, policy *RetryPolicy, fn func() (T, error)) (T, error) {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	attempts := max(policy.MaxAttempts, 1)

	var (
		result  T
		lastErr error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := calculateDelay(policy, attempt)
			if policy.Jitter {
				delay = time.Duration(float64(delay) * (0.8 + 0.4*rand.Float64()))
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, lastErr
			case <-timer.C:
			}
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if policy.RetryableFunc != nil && !policy.RetryableFunc(err) {
			break
		}
		if policy.OnRetry != nil && attempt+1 < attempts {
			policy.OnRetry(attempt+1, err)
		}
	}
	return result, lastErr
}

func calculateDelay(policy *RetryPolicy, attempt int) time.Duration {
	if attempt <= 0 {
		return policy.InitialDelay
	}
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt-1))
	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	return time.Duration(delay)
}
