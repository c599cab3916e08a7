package validator

import (
	"context"
	"iter"
	"math"
	"math/rand"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-indicator/internal/algorithm"
	"github.com/rxtech-lab/argo-indicator/internal/config"
	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// memSource serves an in-memory tick slice as a DataSource.
type memSource struct {
	datasource.DataSource
	ticks []types.Tick
}

func (m *memSource) LoadSymbol(_ context.Context, _ string, r types.TimeRange) ([]types.Tick, error) {
	var out []types.Tick

	for _, t := range m.ticks {
		if t.Time >= r.Start && t.Time <= r.End {
			out = append(out, t)
		}
	}

	return out, nil
}

func (m *memSource) ReadAll(_ string, bounds optional.Option[types.TimeRange]) iter.Seq2[types.Tick, error] {
	return func(yield func(types.Tick, error) bool) {
		for _, t := range m.ticks {
			if bounds.IsSome() {
				r := bounds.Unwrap()
				if t.Time < r.Start || t.Time > r.End {
					continue
				}
			}

			if !yield(t, nil) {
				return
			}
		}
	}
}

// syntheticTicks builds an irregular but deterministic tick stream.
func syntheticTicks(symbol string, start, end float64, seed int64) []types.Tick {
	rng := rand.New(rand.NewSource(seed))

	var ticks []types.Tick

	price := 100.0
	at := start

	for at <= end {
		price *= 1 + (rng.Float64()-0.5)*0.002
		volume := rng.Float64()*2 + 0.01

		ticks = append(ticks, types.Tick{
			Symbol:      symbol,
			Time:        at,
			Price:       price,
			Volume:      volume,
			QuoteVolume: price * volume,
		})

		// Irregular gaps from sub-second to a sparse stretch.
		at += 0.2 + rng.Float64()*12
	}

	return ticks
}

type ValidatorTestSuite struct {
	suite.Suite
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorTestSuite))
}

func variant(id string, algo types.AlgorithmID, category types.Category, interval float64, w types.Window, params map[string]float64) config.Variant {
	return config.Variant{
		ID:              id,
		Category:        category,
		Algorithm:       algo,
		RefreshInterval: interval,
		Windows:         []types.Window{w},
		Params:          params,
	}
}

func (s *ValidatorTestSuite) newValidator(ticks []types.Tick) *Validator {
	return New(&memSource{ticks: ticks}, algorithm.NewRegistry(), logger.NewNopLogger())
}

func (s *ValidatorTestSuite) TestBatchAndReplayAgree() {
	ticks := syntheticTicks("BTCUSDT", 900, 4700, 7)
	v := s.newValidator(ticks)
	r := types.TimeRange{Start: 1000, End: 4600}

	variants := []config.Variant{
		variant("twap", types.AlgorithmTimeWeightedAverage, types.CategoryPrice, 5, types.Window{T1: 300, T2: 0}, nil),
		variant("vwap", types.AlgorithmVolumeWeightedAverage, types.CategoryPrice, 7.5, types.Window{T1: 120, T2: 30}, nil),
		variant("momentum", types.AlgorithmMomentum, types.CategoryGeneral, 10, types.Window{T1: 600, T2: 0}, nil),
		variant("vol", types.AlgorithmRealizedVolatility, types.CategoryRisk, 15, types.Window{T1: 900, T2: 0}, nil),
		variant("stop", types.AlgorithmTrailingStop, types.CategoryStopLoss, 5, types.Window{T1: 300, T2: 0},
			map[string]float64{"offset_pct": 2}),
	}

	for _, vt := range variants {
		report, err := v.Run(context.Background(), vt, "BTCUSDT", r)
		s.Require().NoError(err, vt.ID)

		assert.True(s.T(), report.OK(), "variant %s: %v", vt.ID, report.Mismatches)
		assert.Equal(s.T(), report.BatchPoints, report.ReplayPoints, vt.ID)
		assert.NotZero(s.T(), report.BatchPoints, vt.ID)
	}
}

func (s *ValidatorTestSuite) TestGridIsComplete() {
	// One hour at a 5 second cadence over sparse data: one row per grid
	// point, undefined stretches included.
	ticks := syntheticTicks("BTCUSDT", 0, 600, 3)
	v := s.newValidator(ticks)

	report, err := v.Run(context.Background(),
		variant("twap", types.AlgorithmTimeWeightedAverage, types.CategoryPrice, 5, types.Window{T1: 60, T2: 0}, nil),
		"BTCUSDT", types.TimeRange{Start: 0, End: 3600})
	s.Require().NoError(err)

	assert.Equal(s.T(), 721, report.BatchPoints)
	assert.True(s.T(), report.OK(), "%v", report.Mismatches)
}

func (s *ValidatorTestSuite) TestUnalignedRangeAgrees() {
	ticks := syntheticTicks("BTCUSDT", 50, 800, 11)
	v := s.newValidator(ticks)

	report, err := v.Run(context.Background(),
		variant("twap", types.AlgorithmTimeWeightedAverage, types.CategoryPrice, 7, types.Window{T1: 90, T2: 0}, nil),
		"BTCUSDT", types.TimeRange{Start: 101.3, End: 777.7})
	s.Require().NoError(err)

	assert.True(s.T(), report.OK(), "%v", report.Mismatches)

	first := math.Ceil(101.3/7) * 7
	last := math.Floor(777.7/7) * 7
	want := int((last-first)/7) + 1
	assert.Equal(s.T(), want, report.BatchPoints)
}

func (s *ValidatorTestSuite) TestMismatchReporting() {
	m := Mismatch{Time: 100, Batch: optional.Some(1.5), Replay: optional.None[float64]()}
	assert.Equal(s.T(), "t=100 batch=1.5 replay=none", m.String())

	r := Report{BatchPoints: 2, ReplayPoints: 2, Mismatches: []Mismatch{m}}
	assert.False(s.T(), r.OK())
}
