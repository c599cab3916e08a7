package feed

import (
	"context"
	"iter"

	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// TickFeed streams live trade ticks for a set of symbols. The sequence ends
// when the context is cancelled; transient problems are yielded as errors so
// the consumer can decide whether to keep reading.
type TickFeed interface {
	Stream(ctx context.Context, symbols []string) iter.Seq2[types.Tick, error]
}
