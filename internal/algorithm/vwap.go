package algorithm

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// VolumeWeightedAverage computes the volume-weighted average price over the
// variant's window. Windows whose ticks carry no volume degrade to the
// time-weighted mean so the value stays defined.
type VolumeWeightedAverage struct{}

// NewVolumeWeightedAverage creates the volume-weighted average price algorithm.
func NewVolumeWeightedAverage() Algorithm {
	return &VolumeWeightedAverage{}
}

// Name implements Algorithm.
func (a *VolumeWeightedAverage) Name() types.AlgorithmID {
	return types.AlgorithmVolumeWeightedAverage
}

// Category implements Algorithm.
func (a *VolumeWeightedAverage) Category() types.Category {
	return types.CategoryPrice
}

// ValidateParams implements Algorithm.
func (a *VolumeWeightedAverage) ValidateParams(_ Params) error {
	return nil
}

// Compute implements Algorithm.
func (a *VolumeWeightedAverage) Compute(ticks []types.Tick, p Params, at float64) optional.Option[float64] {
	w := p.Window()
	lo, hi := w.Bounds(at)

	inWindow := Clip(ticks, w, at)
	if len(inWindow) == 0 {
		return priceFallback(ticks, lo)
	}

	var weightedSum, totalVolume float64

	for _, t := range inWindow {
		weightedSum += t.Price * t.Volume
		totalVolume += t.Volume
	}

	if totalVolume == 0 {
		return timeWeightedMean(inWindow, hi, func(t types.Tick) float64 { return t.Price })
	}

	return optional.Some(weightedSum / totalVolume)
}
