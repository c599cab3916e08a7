package feed

import (
	"context"
	"iter"
	"sort"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// ReplayFeed re-emits a historical dataset as if it were live, in strict time
// order across symbols. It is the feed half of the consistency check: a live
// pipeline fed by a ReplayFeed and a fake clock must reproduce the batch
// output over the same range exactly.
type ReplayFeed struct {
	source datasource.DataSource
	bounds optional.Option[types.TimeRange]
}

// NewReplayFeed creates a feed replaying the given source, optionally bounded
// to a time range.
func NewReplayFeed(source datasource.DataSource, bounds optional.Option[types.TimeRange]) *ReplayFeed {
	return &ReplayFeed{source: source, bounds: bounds}
}

// Stream implements TickFeed. Ticks are yielded synchronously, so pulling the
// sequence step by step gives the consumer deterministic control over when
// each tick becomes visible.
func (f *ReplayFeed) Stream(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		var all []types.Tick

		for _, symbol := range symbols {
			for tick, err := range f.source.ReadAll(symbol, f.bounds) {
				if err != nil {
					yield(types.Tick{}, err)

					return
				}

				all = append(all, tick)
			}
		}

		sort.SliceStable(all, func(i, j int) bool {
			return all[i].Time < all[j].Time
		})

		for _, tick := range all {
			if ctx.Err() != nil {
				return
			}

			if !yield(tick, nil) {
				return
			}
		}
	}
}
