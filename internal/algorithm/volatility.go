package algorithm

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// RealizedVolatility measures the standard deviation of log returns over the
// variant's window, expressed in percent and clamped to the risk range
// [0,100]. At least two ticks are required.
type RealizedVolatility struct{}

// NewRealizedVolatility creates the realized volatility algorithm.
func NewRealizedVolatility() Algorithm {
	return &RealizedVolatility{}
}

// Name implements Algorithm.
func (a *RealizedVolatility) Name() types.AlgorithmID {
	return types.AlgorithmRealizedVolatility
}

// Category implements Algorithm.
func (a *RealizedVolatility) Category() types.Category {
	return types.CategoryRisk
}

// ValidateParams implements Algorithm.
func (a *RealizedVolatility) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm.
func (a *RealizedVolatility) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	inWindow := Clip(ticks, p.Window(), at)
	if len(inWindow) < 2 {
		return optional.None[float64]()
	}

	returns := make([]float64, 0, len(inWindow)-1)

	for i := 1; i < len(inWindow); i++ {
		prev, cur := inWindow[i-1].Price, inWindow[i].Price
		if prev <= 0 || cur <= 0 {
			return optional.None[float64]()
		}

		returns = append(returns, math.Log(cur/prev))
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}

	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}

	variance /= float64(len(returns))

	return optional.Some(clamp(math.Sqrt(variance)*100, 0, 100))
}
