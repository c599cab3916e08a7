package algorithm

import (
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// Clip returns the sub-slice of ticks falling inside the window at the given
// evaluation instant, both edges inclusive. The input must be ascending by
// time; the result aliases the input, no copy is made.
func Clip(ticks []types.Tick, w types.Window, at float64) []types.Tick {
	lo, hi := w.Bounds(at)

	start := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Time >= lo
	})
	end := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Time > hi
	})

	return ticks[start:end]
}

// LastBefore returns the most recent tick strictly before the given instant.
func LastBefore(ticks []types.Tick, t float64) (types.Tick, bool) {
	idx := sort.Search(len(ticks), func(i int) bool {
		return ticks[i].Time >= t
	})
	if idx == 0 {
		return types.Tick{}, false
	}

	return ticks[idx-1], true
}

// timeWeightedMean averages f(tick) over the window ticks, weighting each
// tick by the duration it remains current: the gap to the next tick, or to
// the window end for the last one. windowEnd is the absolute upper edge.
func timeWeightedMean(ticks []types.Tick, windowEnd float64, f func(types.Tick) float64) optional.Option[float64] {
	if len(ticks) == 0 {
		return optional.None[float64]()
	}

	var weightedSum, totalWeight float64

	for i, t := range ticks {
		var weight float64
		if i+1 < len(ticks) {
			weight = ticks[i+1].Time - t.Time
		} else {
			weight = windowEnd - t.Time
		}

		weightedSum += f(t) * weight
		totalWeight += weight
	}

	// All ticks at the window end collapse to zero total weight; fall back
	// to a plain mean so the value is still defined.
	if totalWeight == 0 {
		sum := 0.0
		for _, t := range ticks {
			sum += f(t)
		}

		return optional.Some(sum / float64(len(ticks)))
	}

	return optional.Some(weightedSum / totalWeight)
}

// priceFallback implements the empty-window policy for price-family
// algorithms: use the last known price before the window if one exists.
func priceFallback(ticks []types.Tick, windowStart float64) optional.Option[float64] {
	if last, ok := LastBefore(ticks, windowStart); ok {
		return optional.Some(last.Price)
	}

	return optional.None[float64]()
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
