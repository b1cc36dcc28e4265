package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerInitialState(t *testing.T) {
	b := New("embedder")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "embedder", b.Name())
	assert.True(t, b.Allow())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := New("embedder", WithFailureThreshold(3))

	for range 2 {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open")
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := New("embedder", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreakerCountsAreConsecutive(t *testing.T) {
	b := New("embedder", WithFailureThreshold(3))
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	// A failure while open restarts the success streak.
	b = New("embedder", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestBreakerAllowProbesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("embedder",
		WithFailureThreshold(1),
		WithCooldown(10*time.Second),
		WithClock(func() time.Time { return now }),
	)
	b.RecordFailure()
	assert.False(t, b.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow(), "one probe per cooldown")
	assert.False(t, b.Allow())

	now = now.Add(10 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerReset(t *testing.T) {
	b := New("embedder", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}
