package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-indicator/internal/types"
)

type RingBufferTestSuite struct {
	suite.Suite
}

func TestRingBufferSuite(t *testing.T) {
	suite.Run(t, new(RingBufferTestSuite))
}

func tick(symbol string, at, price float64) types.Tick {
	return types.Tick{Symbol: symbol, Time: at, Price: price, Volume: 1, QuoteVolume: price}
}

func (s *RingBufferTestSuite) TestAppendAndQuery() {
	rb := NewRingBuffer(100)
	rb.Append(tick("BTCUSDT", 80, 100))
	rb.Append(tick("BTCUSDT", 85, 105))
	rb.Append(tick("BTCUSDT", 88, 102))

	ticks, err := rb.QueryUpTo(context.Background(), "BTCUSDT", 85)
	s.Require().NoError(err)
	s.Require().Len(ticks, 2)
	assert.Equal(s.T(), float64(105), ticks[1].Price)
}

func (s *RingBufferTestSuite) TestDuplicateTimestampLastWins() {
	rb := NewRingBuffer(100)
	rb.Append(tick("BTCUSDT", 80, 100))
	rb.Append(tick("BTCUSDT", 80, 101))

	ticks, err := rb.QueryUpTo(context.Background(), "BTCUSDT", 90)
	s.Require().NoError(err)
	s.Require().Len(ticks, 1)
	assert.Equal(s.T(), float64(101), ticks[0].Price)
}

func (s *RingBufferTestSuite) TestLateTickInsertedInOrder() {
	rb := NewRingBuffer(100)
	rb.Append(tick("BTCUSDT", 80, 100))
	rb.Append(tick("BTCUSDT", 88, 102))
	rb.Append(tick("BTCUSDT", 85, 105))

	ticks, err := rb.QueryUpTo(context.Background(), "BTCUSDT", 90)
	s.Require().NoError(err)
	s.Require().Len(ticks, 3)
	assert.Equal(s.T(), []float64{80, 85, 88}, []float64{ticks[0].Time, ticks[1].Time, ticks[2].Time})
}

func (s *RingBufferTestSuite) TestEviction() {
	rb := NewRingBuffer(10)
	rb.Append(tick("BTCUSDT", 80, 100))
	rb.Append(tick("BTCUSDT", 85, 105))
	rb.Append(tick("BTCUSDT", 100, 110))

	// 80 and 85 have fallen outside [90, 100].
	assert.Equal(s.T(), 1, rb.Len("BTCUSDT"))

	ticks, err := rb.QueryUpTo(context.Background(), "BTCUSDT", 100)
	s.Require().NoError(err)
	s.Require().Len(ticks, 1)
	assert.Equal(s.T(), float64(100), ticks[0].Time)
}

func (s *RingBufferTestSuite) TestRetentionBoundaryKept() {
	rb := NewRingBuffer(20)
	rb.Append(tick("BTCUSDT", 80, 100))
	rb.Append(tick("BTCUSDT", 100, 110))

	// A tick exactly retention seconds old stays available.
	assert.Equal(s.T(), 2, rb.Len("BTCUSDT"))
}

func (s *RingBufferTestSuite) TestSymbolsIsolated() {
	rb := NewRingBuffer(100)
	rb.Append(tick("BTCUSDT", 80, 100))
	rb.Append(tick("ETHUSDT", 81, 10))

	ticks, err := rb.QueryUpTo(context.Background(), "ETHUSDT", 90)
	s.Require().NoError(err)
	s.Require().Len(ticks, 1)
	assert.Equal(s.T(), "ETHUSDT", ticks[0].Symbol)
}

func (s *RingBufferTestSuite) TestQuerySnapshotIndependent() {
	rb := NewRingBuffer(100)
	rb.Append(tick("BTCUSDT", 80, 100))

	ticks, err := rb.QueryUpTo(context.Background(), "BTCUSDT", 90)
	s.Require().NoError(err)

	rb.Append(tick("BTCUSDT", 80, 999))
	assert.Equal(s.T(), float64(100), ticks[0].Price)
}
