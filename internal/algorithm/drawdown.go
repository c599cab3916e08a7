package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// Drawdown returns the maximum peak-to-trough decline over the variant's
// window, in percent of the peak, clamped to the risk range [0,100].
type Drawdown struct{}

// NewDrawdown creates the drawdown algorithm.
func NewDrawdown() Algorithm {
	return &Drawdown{}
}

// Name implements Algorithm.
func (a *Drawdown) Name() types.AlgorithmID {
	return types.AlgorithmDrawdown
}

// Category implements Algorithm.
func (a *Drawdown) Category() types.Category {
	return types.CategoryRisk
}

// ValidateParams implements Algorithm.
func (a *Drawdown) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm.
func (a *Drawdown) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	inWindow := Clip(ticks, p.Window(), at)
	if len(inWindow) == 0 {
		return optional.None[float64]()
	}

	peak := inWindow[0].Price
	maxDrawdown := 0.0

	for _, t := range inWindow {
		if t.Price > peak {
			peak = t.Price
		}

		if peak > 0 {
			dd := (peak - t.Price) / peak * 100
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	return optional.Some(clamp(maxDrawdown, 0, 100))
}
