// Package reliability holds the shared circuit breaker guarding upstream
// provider calls.
package reliability

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCooldown is how long the breaker stays open after a trip.
const DefaultCooldown = 5 * time.Minute

// Breaker is a single shared on/off switch with a cool-down timer. The
// rate-limit signature indicates the upstream as a whole is throttling the
// process, so the breaker is process-wide rather than per-ticker: one trip
// stops all upstream calls until the cool-down elapses.
//
// State machine: Closed -> Open on Trip(), Open -> Closed automatically the
// first time ShouldBlock() is evaluated after the deadline has passed.
type Breaker struct {
	mu           sync.Mutex
	tripped      bool
	blockedUntil time.Time
	cooldown     time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewBreaker creates a closed breaker with the given cool-down.
// A zero cooldown falls back to DefaultCooldown.
func NewBreaker(cooldown time.Duration, log zerolog.Logger) *Breaker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		cooldown: cooldown,
		log:      log.With().Str("component", "circuit_breaker").Logger(),
		now:      time.Now,
	}
}

// Trip opens the breaker for the cool-down duration. Called when a provider
// response matches the rate-limit signature.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tripped = true
	b.blockedUntil = b.now().Add(b.cooldown)
	b.log.Warn().
		Time("blocked_until", b.blockedUntil).
		Msg("Circuit breaker tripped, suspending all upstream calls")
}

// ShouldBlock reports whether upstream calls must be rejected, and the
// remaining wait for caller-facing Retry-After messaging. The breaker
// self-clears on the first check after the cool-down has elapsed.
func (b *Breaker) ShouldBlock() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return false, 0
	}

	remaining := b.blockedUntil.Sub(b.now())
	if remaining <= 0 {
		b.tripped = false
		b.blockedUntil = time.Time{}
		b.log.Info().Msg("Circuit breaker cool-down elapsed, resuming upstream calls")
		return false, 0
	}

	return true, remaining
}
