package algorithm

import (
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// WindowElapsed reports how many seconds of the variant's window have passed
// without a tick: the gap between the last tick at or before the window end
// and the window end itself. Strategies use it as a close-order signal when
// a market goes stale. No tick has ever been seen means None.
type WindowElapsed struct{}

// NewWindowElapsed creates the window elapsed algorithm.
func NewWindowElapsed() Algorithm {
	return &WindowElapsed{}
}

// Name implements Algorithm.
func (a *WindowElapsed) Name() types.AlgorithmID {
	return types.AlgorithmWindowElapsed
}

// Category implements Algorithm.
func (a *WindowElapsed) Category() types.Category {
	return types.CategoryCloseOrder
}

// ValidateParams implements Algorithm.
func (a *WindowElapsed) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm.
func (a *WindowElapsed) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	_, hi := p.Window().Bounds(at)

	// Window edges are inclusive, so search for the first tick strictly
	// after the end.
	idx := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Time > hi
	})
	if idx == 0 {
		return optional.None[float64]()
	}

	return optional.Some(hi - ticks[idx-1].Time)
}
