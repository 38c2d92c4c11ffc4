package solana

import (
	"math/rand"
	"time"
)

// Backoff produces exponentially growing delays with full jitter: each delay
// is drawn uniformly from (0, base<<attempt], capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	attempt int
}

// Next returns the delay to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	d := b.Base << b.attempt
	if d <= 0 || d > b.Max {
		d = b.Max
	} else {
		b.attempt++
	}
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d))) + 1
}

// Reset restarts the progression after a successful attempt.
func (b *Backoff) Reset() { b.attempt = 0 }
