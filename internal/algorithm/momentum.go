package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// Momentum normalizes the latest window price into [0,1] relative to the
// window's high-low range: 0 at the low, 1 at the high. A degenerate range
// (single price level) yields 0.5.
type Momentum struct{}

// NewMomentum creates the momentum algorithm.
func NewMomentum() Algorithm {
	return &Momentum{}
}

// Name implements Algorithm.
func (a *Momentum) Name() types.AlgorithmID {
	return types.AlgorithmMomentum
}

// Category implements Algorithm.
func (a *Momentum) Category() types.Category {
	return types.CategoryGeneral
}

// ValidateParams implements Algorithm.
func (a *Momentum) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm. Bounded-range policy: an empty window yields
// None rather than a guessed neutral value.
func (a *Momentum) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	inWindow := Clip(ticks, p.Window(), at)
	if len(inWindow) == 0 {
		return optional.None[float64]()
	}

	low, high := inWindow[0].Price, inWindow[0].Price
	for _, t := range inWindow[1:] {
		if t.Price < low {
			low = t.Price
		}

		if t.Price > high {
			high = t.Price
		}
	}

	if high == low {
		return optional.Some(0.5)
	}

	last := inWindow[len(inWindow)-1].Price

	return optional.Some(clamp((last-low)/(high-low), 0, 1))
}
