package jobs

import (
	"math"
	"time"
)

// Backoff is exponential: Base, Base*Factor, Base*Factor^2, ...
type Backoff struct {
	Base   time.Duration
	Factor float64
}

func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Factor: 2}
}

// Delay returns the wait before the retry that follows the given number of
// failed attempts.
func (b Backoff) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(b.Base) * math.Pow(factor, float64(failures-1)))
}
