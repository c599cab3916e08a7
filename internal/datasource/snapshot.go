package datasource

import (
	"context"
	"sort"

	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Snapshot serves QueryUpTo from a fixed, time-ordered tick slice. Each batch
// session holds its own snapshot, so sessions never observe each other's
// loads.
type Snapshot struct {
	symbol string
	ticks  []types.Tick
}

// NewSnapshot wraps a loaded tick slice as a provider. The slice must be
// ordered by time with duplicate timestamps already collapsed, as LoadSymbol
// returns it.
func NewSnapshot(symbol string, ticks []types.Tick) *Snapshot {
	return &Snapshot{symbol: symbol, ticks: ticks}
}

// QueryUpTo implements TickProvider.
func (s *Snapshot) QueryUpTo(ctx context.Context, symbol string, upTo float64) ([]types.Tick, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if symbol != s.symbol {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "snapshot holds %s, not %s", s.symbol, symbol)
	}

	// First tick strictly after upTo bounds the prefix.
	n := sort.Search(len(s.ticks), func(i int) bool {
		return s.ticks[i].Time > upTo
	})

	return s.ticks[:n], nil
}
