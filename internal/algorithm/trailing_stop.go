package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// ParamOffsetPct names the trailing stop's distance below the window high,
// in percent.
const ParamOffsetPct = "offset_pct"

// TrailingStop produces a stop-loss price level trailing the window high by
// a configured percentage.
type TrailingStop struct{}

// NewTrailingStop creates the trailing stop algorithm.
func NewTrailingStop() Algorithm {
	return &TrailingStop{}
}

// Name implements Algorithm.
func (a *TrailingStop) Name() types.AlgorithmID {
	return types.AlgorithmTrailingStop
}

// Category implements Algorithm.
func (a *TrailingStop) Category() types.Category {
	return types.CategoryStopLoss
}

// ValidateParams implements Algorithm.
func (a *TrailingStop) ValidateParams(p Params) error {
	pct, err := p.RequireNum(ParamOffsetPct)
	if err != nil {
		return err
	}

	if pct <= 0 || pct >= 100 {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"%s must be in (0, 100), got %v", ParamOffsetPct, pct)
	}

	return nil
}

// Compute implements Algorithm. An empty window trails the last known price
// before the window instead of the window high.
func (a *TrailingStop) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	pct := p.Num[ParamOffsetPct]
	factor := 1 - pct/100

	w := p.Window()
	lo, _ := w.Bounds(at)

	inWindow := Clip(ticks, w, at)
	if len(inWindow) == 0 {
		if last, ok := LastBefore(ticks, lo); ok {
			return optional.Some(last.Price * factor)
		}

		return optional.None[float64]()
	}

	high := inWindow[0].Price
	for _, t := range inWindow[1:] {
		if t.Price > high {
			high = t.Price
		}
	}

	return optional.Some(high * factor)
}
