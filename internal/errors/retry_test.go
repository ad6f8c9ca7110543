package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		if attempts < 3 {
			return TransientError("flaky", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts) // initial + 3 retries
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(), func() error {
		return errors.New("should not matter")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, TransientError("flaky", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestProviderDelay_ExponentialOnRateLimit(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: time.Minute}
	err := RateLimitError("429", nil)

	assert.Equal(t, 1*time.Second, ProviderDelay(err, 1, cfg))
	assert.Equal(t, 2*time.Second, ProviderDelay(err, 2, cfg))
	assert.Equal(t, 4*time.Second, ProviderDelay(err, 3, cfg))
	assert.Equal(t, 8*time.Second, ProviderDelay(err, 4, cfg))
}

func TestProviderDelay_LinearOnTransient(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: time.Minute}
	err := TransientError("502", nil)

	assert.Equal(t, 1*time.Second, ProviderDelay(err, 1, cfg))
	assert.Equal(t, 2*time.Second, ProviderDelay(err, 2, cfg))
	assert.Equal(t, 3*time.Second, ProviderDelay(err, 3, cfg))
}

func TestProviderDelay_ZeroOnNonRetryable(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Zero(t, ProviderDelay(AuthError("401", nil), 1, cfg))
	assert.Zero(t, ProviderDelay(ValidationError("bad input", nil), 1, cfg))
	assert.Zero(t, ProviderDelay(errors.New("plain"), 1, cfg))
}

func TestProviderDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 5 * time.Second}
	err := RateLimitError("429", nil)

	assert.Equal(t, 5*time.Second, ProviderDelay(err, 10, cfg))
}

func TestRetryProvider_FailsFastOnAuth(t *testing.T) {
	attempts := 0
	_, err := RetryProvider(context.Background(), fastRetryConfig(), func() (string, error) {
		attempts++
		return "", AuthError("invalid api key", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ErrCodeProviderAuth, GetCode(err))
}

func TestRetryProvider_RetriesRateLimit(t *testing.T) {
	attempts := 0
	result, err := RetryProvider(context.Background(), fastRetryConfig(), func() ([]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, RateLimitError("throttled", nil)
		}
		return []float32{0.1, 0.2}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, result, 2)
}
