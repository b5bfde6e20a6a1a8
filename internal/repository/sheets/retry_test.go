package sheets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

func TestWithRetryTransientThenSuccess(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), 4, time.Millisecond, "append TRANSACTIONS", func() error {
		calls++
		if calls < 3 {
			return &googleapi.Error{Code: 429, Message: "rate limit exceeded"}
		}
		return nil
	})

	require.NoError(t, err)
	// Two transient failures followed by success: exactly one effective write,
	// never a duplicate from the retry loop.
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), 3, time.Millisecond, "read ITEMS", func() error {
		calls++
		return &googleapi.Error{Code: 503, Message: "backend error"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var apiErr *googleapi.Error
	assert.True(t, errors.As(err, &apiErr), "underlying diagnostic must be preserved")
	assert.Contains(t, err.Error(), "read ITEMS")
}

func TestWithRetryNonTransientFailsFast(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), zap.NewNop(), 4, time.Millisecond, "read MISSING", func() error {
		calls++
		return &googleapi.Error{Code: 400, Message: "unable to parse range"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "validation-class errors must not be retried")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&googleapi.Error{Code: 429}))
	assert.True(t, isTransient(&googleapi.Error{Code: 500}))
	assert.True(t, isTransient(&googleapi.Error{Code: 503}))
	assert.False(t, isTransient(&googleapi.Error{Code: 403}))
	assert.False(t, isTransient(errors.New("boom")))
}
