// Package ctrl wraps flow handlers with deadlines and retries.
package ctrl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/calque-ai/medrag/pkg/calque"
)

// DefaultBackoff is the delay before the second attempt; it doubles after
// every further failure.
const DefaultBackoff = 200 * time.Millisecond

// Timeout cancels handler once timeout elapses. Output is buffered and only
// forwarded when the handler finishes in time, so a late writer never leaks
// into the next stage. A non-positive timeout disables the limit.
func Timeout(handler calque.Handler, timeout time.Duration) calque.Handler {
	if timeout <= 0 {
		return handler
	}
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		ctx, cancel := context.WithTimeout(req.Context, timeout)
		defer cancel()

		var out bytes.Buffer
		done := make(chan error, 1)
		go func() {
			done <- handler.ServeFlow(req.WithContext(ctx), calque.NewResponse(&out))
		}()

		select {
		case err := <-done:
			if err != nil {
				return err
			}
			_, err = io.Copy(res.Data, &out)
			return err
		case <-ctx.Done():
			return fmt.Errorf("handler timed out after %v: %w", timeout, ctx.Err())
		}
	})
}

// RetryOption configures Retry.
type RetryOption func(*retryConfig)

type retryConfig struct {
	backoff time.Duration
	retryIf func(error) bool
}

// WithBackoff sets the first retry delay.
func WithBackoff(d time.Duration) RetryOption {
	return func(c *retryConfig) { c.backoff = d }
}

// WithRetryIf retries only errors for which fn returns true.
func WithRetryIf(fn func(error) bool) RetryOption {
	return func(c *retryConfig) { c.retryIf = fn }
}

// Retry runs handler up to attempts times, replaying the buffered input on
// each attempt with exponential backoff. Waiting stops early when the request
// context is cancelled.
func Retry(handler calque.Handler, attempts int, opts ...RetryOption) calque.Handler {
	if attempts <= 1 {
		return handler
	}
	cfg := retryConfig{backoff: DefaultBackoff}
	for _, opt := range opts {
		opt(&cfg)
	}

	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		var input []byte
		if err := calque.Read(req, &input); err != nil {
			return err
		}

		var lastErr error
		for attempt := range attempts {
			if attempt > 0 {
				calque.LogWarn(req.Context, "retrying handler", "attempt", attempt+1, "error", lastErr)
				if err := sleep(req.Context, cfg.backoff<<(attempt-1)); err != nil {
					return fmt.Errorf("retry abandoned: %w", lastErr)
				}
			}

			var out bytes.Buffer
			err := handler.ServeFlow(calque.NewRequest(req.Context, bytes.NewReader(input)), calque.NewResponse(&out))
			if err == nil {
				_, err = io.Copy(res.Data, &out)
				return err
			}
			lastErr = err
			if cfg.retryIf != nil && !cfg.retryIf(err) {
				return err
			}
		}
		return fmt.Errorf("retry exhausted after %d attempts: %w", attempts, lastErr)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
