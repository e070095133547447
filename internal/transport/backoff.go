package transport

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff shapes the delay between dial attempts.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
	Jitter     bool
}

// Delay returns the wait before retry number attempt (1-based). With
// Jitter the delay is scaled by a factor in [0.5, 1.5).
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(b.Initial)
	if attempt > 1 {
		delay *= math.Pow(mult, float64(attempt-1))
	}
	if b.Max > 0 && delay > float64(b.Max) {
		delay = float64(b.Max)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f += rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
