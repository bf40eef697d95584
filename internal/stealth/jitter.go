package stealth

import (
	"context"
	"math/rand"
	"time"
)

// Jitter randomizes wait intervals so polling does not run on an exact beat
type Jitter struct {
	rng *rand.Rand
}

// NewJitter creates a new Jitter instance
func NewJitter() *Jitter {
	return &Jitter{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Interval returns base shifted by a random amount in [-spread, +spread].
// The result is never below one millisecond.
func (j *Jitter) Interval(base, spread time.Duration) time.Duration {
	if base < 0 {
		base = 0
	}
	if spread < 0 {
		spread = 0
	}

	d := base
	if spread > 0 {
		variance := (j.rng.Float64()*2 - 1) * float64(spread) // Range: [-spread, +spread]
		d += time.Duration(variance)
	}

	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// Sleep waits for d or until ctx is done, returning the context error in the latter case
func Sleep(ctx context.Context, d time.Duration) error {
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
