package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// PriceRange returns the high-low spread over the variant's window. Unlike
// the other price-family algorithms it does not fall back to a price before
// the window: a spread needs observations inside the window to mean anything,
// so the empty case is None.
type PriceRange struct{}

// NewPriceRange creates the price range algorithm.
func NewPriceRange() Algorithm {
	return &PriceRange{}
}

// Name implements Algorithm.
func (a *PriceRange) Name() types.AlgorithmID {
	return types.AlgorithmPriceRange
}

// Category implements Algorithm.
func (a *PriceRange) Category() types.Category {
	return types.CategoryPrice
}

// ValidateParams implements Algorithm.
func (a *PriceRange) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm.
func (a *PriceRange) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
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

	return optional.Some(high - low)
}
