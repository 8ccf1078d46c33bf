package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker() (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		FailureWindow:    time.Minute,
	}, nil)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func failTransient(ctx context.Context) (string, error) {
	return "", &ProviderError{Provider: "test", StatusCode: 503, Err: errors.New("unavailable")}
}

func succeed(ctx context.Context) (string, error) {
	return "ok", nil
}

func TestCircuitBreakerInitialState(t *testing.T) {
	cb, _ := newTestBreaker()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}

func TestCircuitBreakerOpensOnFailures(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(ctx, failTransient)
		require.Error(t, err)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	_, err := cb.Execute(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb, _ := newTestBreaker()
	for i := 0; i < 5; i++ {
		cb.Execute(context.Background(), func(ctx context.Context) (string, error) {
			return "", &ProviderError{Provider: "test", StatusCode: 400, Err: errors.New("bad request")}
		})
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failTransient)
	}
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(31 * time.Second)
	_, err := cb.Execute(ctx, succeed)
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	_, err = cb.Execute(ctx, succeed)
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		cb.Execute(ctx, failTransient)
	}

	*now = now.Add(31 * time.Second)
	cb.Execute(ctx, failTransient)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreakerFailureWindow(t *testing.T) {
	cb, now := newTestBreaker()
	ctx := context.Background()

	cb.Execute(ctx, failTransient)
	cb.Execute(ctx, failTransient)
	*now = now.Add(2 * time.Minute)
	cb.Execute(ctx, failTransient)
	assert.Equal(t, CircuitClosed, cb.State(), "old failures fall out of the window")
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker()
	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), failTransient)
	}
	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
}
