package reliability

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := NewBreaker(time.Minute, zerolog.Nop())

	blocked, remaining := b.ShouldBlock()
	assert.False(t, blocked)
	assert.Zero(t, remaining)
}

func TestTripBlocksWithDecreasingRemaining(t *testing.T) {
	b := NewBreaker(time.Minute, zerolog.Nop())
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Trip()

	blocked, first := b.ShouldBlock()
	assert.True(t, blocked)
	assert.Equal(t, time.Minute, first)

	now = now.Add(10 * time.Second)
	blocked, second := b.ShouldBlock()
	assert.True(t, blocked)
	assert.Less(t, second, first, "remaining wait must strictly decrease")

	now = now.Add(20 * time.Second)
	blocked, third := b.ShouldBlock()
	assert.True(t, blocked)
	assert.Less(t, third, second)
}

func TestBreakerSelfClearsAfterCooldown(t *testing.T) {
	b := NewBreaker(time.Minute, zerolog.Nop())
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Trip()

	now = now.Add(time.Minute + time.Second)
	blocked, remaining := b.ShouldBlock()
	assert.False(t, blocked)
	assert.Zero(t, remaining)

	// Stays closed on subsequent checks.
	blocked, _ = b.ShouldBlock()
	assert.False(t, blocked)
}

func TestRetripAfterReset(t *testing.T) {
	b := NewBreaker(time.Minute, zerolog.Nop())
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Trip()
	now = now.Add(2 * time.Minute)
	blocked, _ := b.ShouldBlock()
	assert.False(t, blocked)

	b.Trip()
	blocked, remaining := b.ShouldBlock()
	assert.True(t, blocked)
	assert.Equal(t, time.Minute, remaining)
}

func TestZeroCooldownUsesDefault(t *testing.T) {
	b := NewBreaker(0, zerolog.Nop())
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Trip()
	blocked, remaining := b.ShouldBlock()
	assert.True(t, blocked)
	assert.Equal(t, DefaultCooldown, remaining)
}

func TestTripVisibleAcrossGoroutines(t *testing.T) {
	b := NewBreaker(time.Minute, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Trip()
	}()
	wg.Wait()

	blocked, _ := b.ShouldBlock()
	assert.True(t, blocked)
}
