package gateway

import (
	"math/rand"
	"time"
)

const defaultBackoffBase = time.Second

// DefaultBackoff doubles from one second without a cap or jitter: 1s, 2s, 4s, 8s, 16s.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   defaultBackoffBase,
		Factor: 2.0,
	}
}

// Next returns the next backoff duration for the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = defaultBackoffBase
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2.0
	}

	wait := base
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if b.Max > 0 && next > b.Max {
			wait = b.Max
			break
		}
		wait = next
	}
	if b.Max > 0 && wait > b.Max {
		wait = b.Max
	}

	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}

func (b Backoff) isZero() bool {
	return b.Base == 0 && b.Max == 0 && b.Factor == 0 && b.Jitter == 0
}
