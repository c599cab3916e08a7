package datasource

import (
	"context"
	"sort"
	"sync"

	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// RingBuffer holds the recent tick history a live session needs: everything
// inside the largest lookback of the session plus a safety margin. One feed
// goroutine appends, the computation loop reads snapshots, and anything older
// than the retention span is evicted on append.
type RingBuffer struct {
	retention float64

	mu    sync.RWMutex
	ticks map[string][]types.Tick
}

// NewRingBuffer creates a buffer retaining the given number of seconds of
// history per symbol.
func NewRingBuffer(retentionSeconds float64) *RingBuffer {
	return &RingBuffer{
		retention: retentionSeconds,
		ticks:     make(map[string][]types.Tick),
	}
}

// Append adds a tick and evicts everything that has fallen out of the
// retention span. A tick carrying the same timestamp as the newest entry
// replaces it; a tick older than the newest entry is inserted in order so
// late feed deliveries do not break the time ordering.
func (b *RingBuffer) Append(tick types.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ticks := b.ticks[tick.Symbol]

	switch {
	case len(ticks) == 0 || tick.Time > ticks[len(ticks)-1].Time:
		ticks = append(ticks, tick)
	case tick.Time == ticks[len(ticks)-1].Time:
		ticks[len(ticks)-1] = tick
	default:
		i := sort.Search(len(ticks), func(i int) bool {
			return ticks[i].Time >= tick.Time
		})
		if ticks[i].Time == tick.Time {
			ticks[i] = tick
		} else {
			ticks = append(ticks, types.Tick{})
			copy(ticks[i+1:], ticks[i:])
			ticks[i] = tick
		}
	}

	cutoff := ticks[len(ticks)-1].Time - b.retention
	evict := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Time >= cutoff
	})
	if evict > 0 {
		ticks = ticks[evict:]
	}

	b.ticks[tick.Symbol] = ticks
}

// QueryUpTo implements TickProvider. It returns a copy so the feed goroutine
// can keep appending while the caller computes.
func (b *RingBuffer) QueryUpTo(ctx context.Context, symbol string, upTo float64) ([]types.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	ticks := b.ticks[symbol]
	n := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Time > upTo
	})

	out := make([]types.Tick, n)
	copy(out, ticks[:n])

	return out, nil
}

// Len returns the number of retained ticks for a symbol.
func (b *RingBuffer) Len(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.ticks[symbol])
}
