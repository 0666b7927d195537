package network

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", Settings{
		Timeout: 10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (interface{}, error) { return nil, fmt.Errorf("boom") })
		require.Error(t, err)
	}

	assert.Equal(t, StateOpen, b.State())

	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	b := New("test", Settings{
		Timeout: 5 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 1
		},
	})

	_, _ = b.Execute(func() (interface{}, error) { return nil, fmt.Errorf("boom") })
	require.Equal(t, StateOpen, b.State())

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	_, err := b.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}
