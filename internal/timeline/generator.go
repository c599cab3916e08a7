package timeline

import (
	"context"
	"math"

	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// Generator emits the instants at which a variant must be evaluated. Both
// modes produce the same grid for the same refresh interval: consecutive
// multiples of the interval counted from the epoch, so batch and live runs
// evaluate at identical timestamps.
type Generator interface {
	// Next returns the next evaluation instant. ok is false when the
	// timeline is exhausted or the context has been cancelled.
	Next(ctx context.Context) (instant float64, ok bool)
}

// gridIndex returns the index of the first grid point at or after t.
func gridIndex(t, interval float64) int64 {
	return int64(math.Ceil(t / interval))
}

// BatchGenerator walks a fixed historical range. Instants are computed as
// index*interval rather than by repeated addition so long ranges accumulate
// no floating point drift.
type BatchGenerator struct {
	interval float64
	first    int64
	last     int64
	next     int64
}

// NewBatchGenerator creates a generator covering every grid point inside the
// given range, both ends inclusive.
func NewBatchGenerator(r types.TimeRange, interval float64) *BatchGenerator {
	first := gridIndex(r.Start, interval)
	last := int64(math.Floor(r.End / interval))
	return &BatchGenerator{
		interval: interval,
		first:    first,
		last:     last,
		next:     first,
	}
}

// Next implements Generator.
func (g *BatchGenerator) Next(ctx context.Context) (float64, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if g.next > g.last {
		return 0, false
	}
	instant := float64(g.next) * g.interval
	g.next++
	return instant, true
}

// Reset rewinds the generator to the start of its range.
func (g *BatchGenerator) Reset() {
	g.next = g.first
}

// Count returns the number of instants the generator will emit in total.
func (g *BatchGenerator) Count() int64 {
	if g.last < g.first {
		return 0
	}
	return g.last - g.first + 1
}

// LiveGenerator emits grid points as the clock reaches them. Each call waits
// for the first multiple of the interval strictly after the current time, so
// a slow consumer skips points instead of falling behind.
type LiveGenerator struct {
	interval float64
	clock    Clock
}

// NewLiveGenerator creates a generator driven by the given clock.
func NewLiveGenerator(interval float64, clock Clock) *LiveGenerator {
	return &LiveGenerator{
		interval: interval,
		clock:    clock,
	}
}

// Next implements Generator.
func (g *LiveGenerator) Next(ctx context.Context) (float64, bool) {
	now := g.clock.Now()
	instant := float64(int64(math.Floor(now/g.interval))+1) * g.interval
	if err := g.clock.Sleep(ctx, instant); err != nil {
		return 0, false
	}
	return instant, true
}
