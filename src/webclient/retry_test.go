package webclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	status, body, err := DoWithRetry(context.Background(), 5, time.Millisecond, func() (int, []byte, error) {
		calls++
		if calls < 3 {
			return http.StatusServiceUnavailable, nil, nil
		}
		return http.StatusOK, []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 3, calls)
}

func TestDoWithRetryDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	status, _, err := DoWithRetry(context.Background(), 5, time.Millisecond, func() (int, []byte, error) {
		calls++
		return http.StatusBadRequest, nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 1, calls)
}

func TestDoWithRetryGivesUp(t *testing.T) {
	calls := 0
	_, _, err := DoWithRetry(context.Background(), 3, time.Millisecond, func() (int, []byte, error) {
		calls++
		return 0, nil, errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWithRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := DoWithRetry(ctx, 10, time.Hour, func() (int, []byte, error) {
		calls++
		cancel()
		return http.StatusTooManyRequests, nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
