package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// ParamTargetPct names the take profit's distance above the window's
// time-weighted average price, in percent.
const ParamTargetPct = "target_pct"

// FixedTakeProfit produces a take-profit price level at a configured
// percentage above the window's time-weighted average price.
type FixedTakeProfit struct{}

// NewFixedTakeProfit creates the fixed take profit algorithm.
func NewFixedTakeProfit() Algorithm {
	return &FixedTakeProfit{}
}

// Name implements Algorithm.
func (a *FixedTakeProfit) Name() types.AlgorithmID {
	return types.AlgorithmFixedTakeProfit
}

// Category implements Algorithm.
func (a *FixedTakeProfit) Category() types.Category {
	return types.CategoryTakeProfit
}

// ValidateParams implements Algorithm.
func (a *FixedTakeProfit) ValidateParams(p Params) error {
	pct, err := p.RequireNum(ParamTargetPct)
	if err != nil {
		return err
	}

	if pct <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"%s must be positive, got %v", ParamTargetPct, pct)
	}

	return nil
}

// Compute implements Algorithm.
func (a *FixedTakeProfit) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	pct := p.Num[ParamTargetPct]
	factor := 1 + pct/100

	w := p.Window()
	lo, hi := w.Bounds(at)

	inWindow := Clip(ticks, w, at)
	if len(inWindow) == 0 {
		if last, ok := LastBefore(ticks, lo); ok {
			return optional.Some(last.Price * factor)
		}

		return optional.None[float64]()
	}

	base := timeWeightedMean(inWindow, hi, func(t types.Tick) float64 { return t.Price })

	return optional.Map(base, func(v float64) float64 { return v * factor })
}
