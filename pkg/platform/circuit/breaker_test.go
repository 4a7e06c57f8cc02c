package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("registry-cache")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "registry-cache", b.Name())
	assert.True(t, b.Allow())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New("cache", WithFailureThreshold(3))

	for range 2 {
		fallback, change := b.RecordFailure()
		assert.False(t, fallback)
		assert.False(t, change.Opened)
	}

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "already open")
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b := New("cache", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_ClosesAfterSuccessStreak(t *testing.T) {
	b := New("cache", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen(), "failure restarts the success streak")

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_AllowProbesOncePerCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := New("cache",
		WithFailureThreshold(1),
		WithCooldown(time.Second),
		WithClock(func() time.Time { return now }),
	)
	b.RecordFailure()

	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	now = now.Add(2 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("cache", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
