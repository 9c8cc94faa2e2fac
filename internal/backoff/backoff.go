// Package backoff implements the exponential retry-delay policy shared by
// the connection actors, the backfill fetcher, and the alert dispatcher.
package backoff

import "time"

// Policy computes the delay before a retry attempt. Delays grow by Factor
// per attempt and saturate: the exponent stops growing past MaxExponent and
// the delay never exceeds Cap. Attempts themselves are unbounded.
type Policy struct {
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	MaxExponent int
}

// DefaultReconnect is the reconnect policy used by connection actors.
func DefaultReconnect() Policy {
	return Policy{
		Base:        1 * time.Second,
		Factor:      1.5,
		Cap:         60 * time.Second,
		MaxExponent: 12,
	}
}

// Delay returns the wait before the given attempt, counted from 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.MaxExponent > 0 && attempt > p.MaxExponent {
		attempt = p.MaxExponent
	}

	d := float64(p.Base)
	for i := 1; i < attempt; i++ {
		d *= p.Factor
		if p.Cap > 0 && d >= float64(p.Cap) {
			return p.Cap
		}
	}

	delay := time.Duration(d)
	if p.Cap > 0 && delay > p.Cap {
		return p.Cap
	}
	return delay
}
