package uploader

import (
	"math/rand"
	"time"
)

const (
	backoffInitial = 1 * time.Second
	backoffMax     = 60 * time.Second
	backoffJitter  = 0.25
)

// backoff doubles the retry delay after every consecutive failure, from
// backoffInitial up to backoffMax, and spreads each delay by ±backoffJitter.
type backoff struct {
	attempts int

	// jitter returns a value in [0,1); 0.5 means no spread.
	jitter func() float64
}

func newBackoff() *backoff {
	return &backoff{jitter: rand.Float64} //nolint:gosec // not crypto
}

// base is the unjittered delay for the current attempt.
func (b *backoff) base() time.Duration {
	d := backoffInitial
	for i := 0; i < b.attempts && d < backoffMax; i++ {
		d *= 2
	}
	return min(d, backoffMax)
}

// next returns the delay before the next retry and counts the failure.
func (b *backoff) next() time.Duration {
	base := b.base()
	b.attempts++
	spread := backoffJitter * (2*b.jitter() - 1)
	return max(base+time.Duration(float64(base)*spread), 0)
}

func (b *backoff) reset() {
	b.attempts = 0
}
