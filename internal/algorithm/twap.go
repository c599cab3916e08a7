package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// TimeWeightedAverage computes the time-weighted average price over the
// variant's window. Each tick is weighted by the duration it remains the
// current price: the gap to the next tick, or to the window end for the
// last tick.
//
// Ticks at (t=80,p=100), (t=85,p=105), (t=88,p=102) over window [80,95]
// weigh 5, 3 and 7 seconds, giving (100*5 + 105*3 + 102*7) / 15 = 101.9333.
type TimeWeightedAverage struct{}

// NewTimeWeightedAverage creates the time-weighted average price algorithm.
func NewTimeWeightedAverage() Algorithm {
	return &TimeWeightedAverage{}
}

// Name implements Algorithm.
func (a *TimeWeightedAverage) Name() types.AlgorithmID {
	return types.AlgorithmTimeWeightedAverage
}

// Category implements Algorithm.
func (a *TimeWeightedAverage) Category() types.Category {
	return types.CategoryPrice
}

// ValidateParams implements Algorithm. The window pair is the only input.
func (a *TimeWeightedAverage) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm. An empty window falls back to the last known
// price before the window start, if any.
func (a *TimeWeightedAverage) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	w := p.Window()
	lo, hi := w.Bounds(at)

	inWindow := Clip(ticks, w, at)
	if len(inWindow) == 0 {
		return priceFallback(ticks, lo)
	}

	return timeWeightedMean(inWindow, hi, func(t types.Tick) float64 { return t.Price })
}
