package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-indicator/internal/types"
)

type GeneratorTestSuite struct {
	suite.Suite
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorTestSuite))
}

func (s *GeneratorTestSuite) TestBatchAlignedRange() {
	gen := NewBatchGenerator(types.TimeRange{Start: 100, End: 120}, 5)

	var got []float64
	for {
		instant, ok := gen.Next(context.Background())
		if !ok {
			break
		}
		got = append(got, instant)
	}

	assert.Equal(s.T(), []float64{100, 105, 110, 115, 120}, got)
	assert.Equal(s.T(), int64(5), gen.Count())
}

func (s *GeneratorTestSuite) TestBatchUnalignedStartRoundsUp() {
	gen := NewBatchGenerator(types.TimeRange{Start: 101, End: 119}, 5)

	instant, ok := gen.Next(context.Background())
	assert.True(s.T(), ok)
	assert.Equal(s.T(), float64(105), instant)
	assert.Equal(s.T(), int64(3), gen.Count())
}

func (s *GeneratorTestSuite) TestBatchEmptyRange() {
	gen := NewBatchGenerator(types.TimeRange{Start: 101, End: 104}, 5)

	_, ok := gen.Next(context.Background())
	assert.False(s.T(), ok)
	assert.Equal(s.T(), int64(0), gen.Count())
}

func (s *GeneratorTestSuite) TestBatchReset() {
	gen := NewBatchGenerator(types.TimeRange{Start: 0, End: 10}, 5)

	for {
		if _, ok := gen.Next(context.Background()); !ok {
			break
		}
	}
	gen.Reset()

	instant, ok := gen.Next(context.Background())
	assert.True(s.T(), ok)
	assert.Equal(s.T(), float64(0), instant)
}

func (s *GeneratorTestSuite) TestBatchFractionalInterval() {
	gen := NewBatchGenerator(types.TimeRange{Start: 10, End: 11}, 0.5)

	var got []float64
	for {
		instant, ok := gen.Next(context.Background())
		if !ok {
			break
		}
		got = append(got, instant)
	}

	assert.Equal(s.T(), []float64{10, 10.5, 11}, got)
}

func (s *GeneratorTestSuite) TestBatchStopsOnCancelledContext() {
	gen := NewBatchGenerator(types.TimeRange{Start: 0, End: 100}, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := gen.Next(ctx)
	assert.False(s.T(), ok)
}

func (s *GeneratorTestSuite) TestBatchNoDriftOverLongRange() {
	gen := NewBatchGenerator(types.TimeRange{Start: 0, End: 3600}, 0.1)

	var last float64
	for {
		instant, ok := gen.Next(context.Background())
		if !ok {
			break
		}
		last = instant
	}

	assert.Equal(s.T(), float64(3600), last)
}

func (s *GeneratorTestSuite) TestLiveEmitsNextGridPoint() {
	clock := NewFakeClock(102)
	gen := NewLiveGenerator(5, clock)

	instant, ok := gen.Next(context.Background())
	assert.True(s.T(), ok)
	assert.Equal(s.T(), float64(105), instant)
	assert.Equal(s.T(), float64(105), clock.Now())
}

func (s *GeneratorTestSuite) TestLiveOnGridPointMovesForward() {
	// An instant exactly on the grid must not be emitted twice.
	clock := NewFakeClock(105)
	gen := NewLiveGenerator(5, clock)

	instant, ok := gen.Next(context.Background())
	assert.True(s.T(), ok)
	assert.Equal(s.T(), float64(110), instant)
}

func (s *GeneratorTestSuite) TestLiveMatchesBatchGrid() {
	clock := NewFakeClock(99.7)
	live := NewLiveGenerator(5, clock)
	batch := NewBatchGenerator(types.TimeRange{Start: 100, End: 130}, 5)

	for {
		want, ok := batch.Next(context.Background())
		if !ok {
			break
		}
		got, ok := live.Next(context.Background())
		assert.True(s.T(), ok)
		assert.Equal(s.T(), want, got)
	}
}

func (s *GeneratorTestSuite) TestLiveStopsOnCancelledContext() {
	clock := NewFakeClock(0)
	gen := NewLiveGenerator(5, clock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := gen.Next(ctx)
	assert.False(s.T(), ok)
}
