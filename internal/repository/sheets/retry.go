package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const (
	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = 250 * time.Millisecond
)

// withRetry runs fn, retrying transient failures with the delay doubling per
// attempt. Non-transient errors surface immediately.
func withRetry(ctx context.Context, logger *zap.Logger, attempts int, baseDelay time.Duration, op string, fn func() error) error {
	if attempts < 1 {
		attempts = defaultRetryAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultRetryBaseDelay
	}

	delay := baseDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("transient sheets error, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("%s: %d attempts exhausted: %w", op, attempts, err)
}

// isTransient classifies rate limiting and server/network hiccups as
// retryable; everything else (bad range, permissions) is not.
func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
