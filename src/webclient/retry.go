package webclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
)

// AttemptFunc performs one request and reports its status and body.
type AttemptFunc func() (status int, body []byte, err error)

// Retryable reports whether status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry runs fn until it returns a non-retryable status, attempts
// are exhausted or ctx ends. Delays start at initialDelay and double up to
// 30s.
func DoWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn AttemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initialDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)

	var (
		status int
		body   []byte
	)
	err := backoff.Retry(func() error {
		var err error
		status, body, err = fn()
		switch {
		case err != nil:
			return err
		case Retryable(status):
			return fmt.Errorf("retryable status %d", status)
		}
		return nil
	}, bo)
	if err != nil && ctx.Err() != nil {
		return status, body, ctx.Err()
	}
	return status, body, err
}
