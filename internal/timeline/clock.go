package timeline

import (
	"context"
	"time"
)

// Clock abstracts wall-clock access so live components can be driven by an
// accelerated clock in tests and in the consistency validator. Instants are
// seconds since the Unix epoch, fractional.
type Clock interface {
	// Now returns the current instant.
	Now() float64
	// Sleep blocks until the given instant arrives or the context is
	// cancelled, whichever comes first.
	Sleep(ctx context.Context, until float64) error
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// NewSystemClock creates a Clock backed by the system time.
func NewSystemClock() Clock {
	return &SystemClock{}
}

// Now implements Clock.
func (c *SystemClock) Now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// Sleep implements Clock.
func (c *SystemClock) Sleep(ctx context.Context, until float64) error {
	d := time.Duration((until - c.Now()) * float64(time.Second))
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
