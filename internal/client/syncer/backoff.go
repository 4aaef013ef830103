package syncer

import (
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultBackoffBase = 5 * time.Second
	DefaultBackoffCap  = 10 * time.Minute
)

// Backoff computes how long a record waits after its n-th consecutive push
// failure: base, 2*base, 4*base and so on, never more than cap.
type Backoff struct {
	base time.Duration
	cap  time.Duration
}

func NewBackoff(base, cap time.Duration) Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if cap < base {
		cap = base
	}
	return Backoff{base: base, cap: cap}
}

// Delay returns the wait after the given number of failed attempts.
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}

	bo := retry.WithCappedDuration(b.cap, retry.NewExponential(b.base))
	var d time.Duration
	for i := 0; i < attempts; i++ {
		d, _ = bo.Next()
		if d >= b.cap {
			return b.cap
		}
	}
	return d
}
