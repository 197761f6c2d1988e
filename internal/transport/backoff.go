package transport

import (
	"math/rand"
	"time"
)

// stableConnectionAge is how long a connection must survive before the next
// drop is treated as a fresh outage rather than a continuation of the last
// retry storm.
const stableConnectionAge = time.Minute

// backoff schedules reconnect attempts with exponential delay and jitter.
// Not safe for concurrent use; the connect loop is its only caller.
type backoff struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int

	attempt     int
	connectedAt time.Time
}

func newBackoff(base, max time.Duration, maxAttempts int) *backoff {
	return &backoff{base: base, max: max, maxAttempts: maxAttempts}
}

// exhausted reports whether the attempt budget is spent. A zero budget means
// retry forever.
func (b *backoff) exhausted() bool {
	return b.maxAttempts > 0 && b.attempt >= b.maxAttempts
}

// markConnected records a successful dial so a later stable disconnect can
// reset the schedule.
func (b *backoff) markConnected(now time.Time) {
	b.connectedAt = now
}

// next returns the delay before the upcoming attempt and advances the
// schedule. A connection that held for stableConnectionAge resets the
// attempt counter first.
func (b *backoff) next(now time.Time) time.Duration {
	if !b.connectedAt.IsZero() && now.Sub(b.connectedAt) >= stableConnectionAge {
		b.attempt = 0
	}
	b.connectedAt = time.Time{}

	delay := b.base << b.attempt
	if delay > b.max || delay <= 0 {
		delay = b.max
	}
	// Up to 25% jitter keeps a fleet of clients from dialing in lockstep.
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	b.attempt++

	delay += jitter
	if delay > b.max {
		delay = b.max
	}

	return delay
}
