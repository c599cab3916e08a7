package timeline

import (
	"context"
	"sync"
)

// FakeClock is a deterministic clock for tests and replay runs. Sleep jumps
// straight to the requested instant, so a live pipeline driven by a FakeClock
// replays hours of wall time in milliseconds.
type FakeClock struct {
	mu  sync.Mutex
	now float64
}

// NewFakeClock creates a clock frozen at the given instant.
func NewFakeClock(now float64) *FakeClock {
	return &FakeClock{now: now}
}

// Now implements Clock.
func (c *FakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock. It advances the clock to the target instant
// immediately unless the context is already cancelled.
func (c *FakeClock) Sleep(ctx context.Context, until float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if until > c.now {
		c.now = until
	}
	return nil
}

// Advance moves the clock forward by the given number of seconds.
func (c *FakeClock) Advance(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}
