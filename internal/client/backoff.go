package client

import (
	"math/rand"
	"time"
)

type Backoff struct {
	BaseDelay time.Duration // e.g. 500ms
	MaxDelay  time.Duration // e.g. 30s
}

func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
	}
}

// Delay computes the wait before reconnect attempt using exponential backoff with full jitter.
// attempt is 1-based (1 => BaseDelay).
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.BaseDelay <= 0 {
		b.BaseDelay = 500 * time.Millisecond
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = 30 * time.Second
	}

	// exponential: base * 2^(attempt-1), stopping at the cap before the shift overflows
	delay := b.BaseDelay
	for i := 1; i < attempt && delay < b.MaxDelay; i++ {
		delay <<= 1
	}
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}

	// full jitter: random in [0, delay]
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return time.Duration(rng.Int63n(int64(delay) + 1))
}
