package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// LastPrice returns the most recent price inside the variant's window.
type LastPrice struct{}

// NewLastPrice creates the last price algorithm.
func NewLastPrice() Algorithm {
	return &LastPrice{}
}

// Name implements Algorithm.
func (a *LastPrice) Name() types.AlgorithmID {
	return types.AlgorithmLastPrice
}

// Category implements Algorithm.
func (a *LastPrice) Category() types.Category {
	return types.CategoryPrice
}

// ValidateParams implements Algorithm.
func (a *LastPrice) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm.
func (a *LastPrice) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	w := p.Window()
	lo, _ := w.Bounds(at)

	inWindow := Clip(ticks, w, at)
	if len(inWindow) == 0 {
		return priceFallback(ticks, lo)
	}

	return optional.Some(inWindow[len(inWindow)-1].Price)
}
