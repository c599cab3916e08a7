package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

type SinkTestSuite struct {
	suite.Suite
	sink *DuckDBSink
}

func TestSinkSuite(t *testing.T) {
	suite.Run(t, new(SinkTestSuite))
}

func (s *SinkTestSuite) SetupTest() {
	sink, err := NewDuckDBSink("", 4, logger.NewNopLogger())
	s.Require().NoError(err)
	s.sink = sink
}

func (s *SinkTestSuite) TearDownTest() {
	if s.sink != nil {
		s.sink.Close()
	}
}

func key(variantID string) types.SeriesKey {
	return types.SeriesKey{
		SessionID: "sess-1",
		Symbol:    "BTCUSDT",
		Category:  types.CategoryPrice,
		VariantID: variantID,
	}
}

func (s *SinkTestSuite) TestWriteFlushRead() {
	k := key("twap_5m")

	s.Require().NoError(s.sink.Write(k, types.ComputedPoint{Time: 100, Value: optional.Some(101.5)}))
	s.Require().NoError(s.sink.Write(k, types.ComputedPoint{Time: 105, Value: optional.None[float64]()}))
	s.Require().NoError(s.sink.Flush())

	points, err := s.sink.ReadPoints("sess-1", "BTCUSDT", "twap_5m")
	s.Require().NoError(err)
	s.Require().Len(points, 2)

	assert.Equal(s.T(), float64(100), points[0].Time)
	assert.Equal(s.T(), 101.5, points[0].Value.Unwrap())
	assert.True(s.T(), points[1].Value.IsNone())
}

func (s *SinkTestSuite) TestRewriteSameInstantKeepsOneRow() {
	k := key("twap_5m")

	// A retried write for the same series instant must replace the buffered
	// point, not add a second row.
	s.Require().NoError(s.sink.Write(k, types.ComputedPoint{Time: 100, Value: optional.Some(101.5)}))
	s.Require().NoError(s.sink.Write(k, types.ComputedPoint{Time: 100, Value: optional.Some(102.0)}))
	s.Require().NoError(s.sink.Flush())

	points, err := s.sink.ReadPoints("sess-1", "BTCUSDT", "twap_5m")
	s.Require().NoError(err)
	s.Require().Len(points, 1)
	assert.Equal(s.T(), 102.0, points[0].Value.Unwrap())
}

func (s *SinkTestSuite) TestRewriteKeepsOtherSeriesApart() {
	now := types.ComputedPoint{Time: 100, Value: optional.Some(1.0)}

	s.Require().NoError(s.sink.Write(key("twap_5m"), now))
	s.Require().NoError(s.sink.Write(key("twap_1m"), now))
	s.Require().NoError(s.sink.Flush())

	points, err := s.sink.ReadPoints("sess-1", "BTCUSDT", "twap_5m")
	s.Require().NoError(err)
	assert.Len(s.T(), points, 1)

	points, err = s.sink.ReadPoints("sess-1", "BTCUSDT", "twap_1m")
	s.Require().NoError(err)
	assert.Len(s.T(), points, 1)
}

func (s *SinkTestSuite) TestSessionStateUpsert() {
	rec := SessionRecord{
		SessionID: "sess-1",
		Symbol:    "BTCUSDT",
		Category:  types.CategoryPrice,
		VariantID: "twap_5m",
		Mode:      types.ModeBatch,
		State:     types.SessionStateRunning,
	}
	s.Require().NoError(s.sink.WriteSessionState(rec))

	got, err := s.sink.ReadSessionState("sess-1")
	s.Require().NoError(err)
	assert.Equal(s.T(), types.SessionStateRunning, got.State)

	rec.State = types.SessionStateFailed
	rec.Error = "write failed"
	rec.PointsWritten = 3
	s.Require().NoError(s.sink.WriteSessionState(rec))

	got, err = s.sink.ReadSessionState("sess-1")
	s.Require().NoError(err)
	assert.Equal(s.T(), types.SessionStateFailed, got.State)
	assert.Equal(s.T(), "write failed", got.Error)
	assert.Equal(s.T(), int64(3), got.PointsWritten)
}

func (s *SinkTestSuite) TestReadSessionStateUnknown() {
	_, err := s.sink.ReadSessionState("missing")
	assert.Equal(s.T(), errors.ErrCodeSessionNotFound, errors.GetCode(err))
}

func (s *SinkTestSuite) TestAutoFlushAtBatchSize() {
	k := key("twap_5m")

	for i := 0; i < 4; i++ {
		s.Require().NoError(s.sink.Write(k, types.ComputedPoint{Time: float64(i), Value: optional.Some(1.0)}))
	}

	// Buffer reached flushSize, rows are durable without an explicit Flush.
	points, err := s.sink.ReadPoints("sess-1", "BTCUSDT", "twap_5m")
	s.Require().NoError(err)
	assert.Len(s.T(), points, 4)
}

func (s *SinkTestSuite) TestWriteAfterCloseFails() {
	s.Require().NoError(s.sink.Close())

	err := s.sink.Write(key("twap_5m"), types.ComputedPoint{Time: 1, Value: optional.Some(1.0)})
	assert.Equal(s.T(), errors.ErrCodeSinkClosed, errors.GetCode(err))
}

func (s *SinkTestSuite) TestCloseFlushesBuffer() {
	dir := s.T().TempDir()
	path := filepath.Join(dir, "points.duckdb")

	sink, err := NewDuckDBSink(path, 100, logger.NewNopLogger())
	s.Require().NoError(err)

	s.Require().NoError(sink.Write(key("v"), types.ComputedPoint{Time: 1, Value: optional.Some(2.0)}))
	s.Require().NoError(sink.Close())

	reopened, err := NewDuckDBSink(path, 100, logger.NewNopLogger())
	s.Require().NoError(err)
	defer reopened.Close()

	points, err := reopened.ReadPoints("sess-1", "BTCUSDT", "v")
	s.Require().NoError(err)
	assert.Len(s.T(), points, 1)
}

func (s *SinkTestSuite) TestExportParquet() {
	dir := s.T().TempDir()

	s.Require().NoError(s.sink.Write(key("twap_5m"), types.ComputedPoint{Time: 100, Value: optional.Some(101.5)}))

	riskKey := types.SeriesKey{SessionID: "sess-1", Symbol: "BTCUSDT", Category: types.CategoryRisk, VariantID: "vol_1h"}
	s.Require().NoError(s.sink.Write(riskKey, types.ComputedPoint{Time: 100, Value: optional.Some(12.0)}))

	paths, err := s.sink.ExportParquet("sess-1", dir)
	s.Require().NoError(err)
	s.Require().Len(paths, 2)

	assert.Equal(s.T(), filepath.Join(dir, "price_twap_5m.parquet"), paths[0])
	assert.Equal(s.T(), filepath.Join(dir, "risk_vol_1h.parquet"), paths[1])

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(s.T(), err)
	}
}

type HubTestSuite struct {
	suite.Suite
}

func TestHubSuite(t *testing.T) {
	suite.Run(t, new(HubTestSuite))
}

func (s *HubTestSuite) TestPublishReachesSubscribers() {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(types.Notification{SessionID: "sess-1", Time: 100})

	n := <-ch
	assert.Equal(s.T(), "sess-1", n.SessionID)
}

func (s *HubTestSuite) TestCancelRemovesSubscriber() {
	hub := NewHub()
	_, cancel := hub.Subscribe()

	assert.Equal(s.T(), 1, hub.SubscriberCount())
	cancel()
	assert.Equal(s.T(), 0, hub.SubscriberCount())
}

func (s *HubTestSuite) TestSlowSubscriberDropped() {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Publish(types.Notification{Time: float64(i)})
	}

	assert.Equal(s.T(), 0, hub.SubscriberCount())

	// The channel was closed after the buffered notifications.
	count := 0
	for range ch {
		count++
	}
	assert.Equal(s.T(), subscriberBuffer, count)
}

func (s *HubTestSuite) TestHubWriterPublishesValueAndNone() {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	w := NewHubWriter(hub)
	k := key("twap_5m")

	s.Require().NoError(w.Write(k, types.ComputedPoint{Time: 100, Value: optional.Some(101.5)}))
	s.Require().NoError(w.Write(k, types.ComputedPoint{Time: 105, Value: optional.None[float64]()}))

	first := <-ch
	s.Require().NotNil(first.Value)
	assert.Equal(s.T(), 101.5, *first.Value)
	assert.Equal(s.T(), "price_twap_5m", types.SeriesKey{
		SessionID: first.SessionID,
		Symbol:    first.Symbol,
		Category:  first.Category,
		VariantID: first.VariantID,
	}.SeriesName())

	second := <-ch
	assert.Nil(s.T(), second.Value)
}

func (s *HubTestSuite) TestTeeWritesToAll() {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	sink, err := NewDuckDBSink("", 4, logger.NewNopLogger())
	s.Require().NoError(err)

	tee := NewTee(sink, NewHubWriter(hub))
	s.Require().NoError(tee.Write(key("twap_5m"), types.ComputedPoint{Time: 100, Value: optional.Some(1.0)}))
	s.Require().NoError(tee.Flush())

	points, err := sink.ReadPoints("sess-1", "BTCUSDT", "twap_5m")
	s.Require().NoError(err)
	assert.Len(s.T(), points, 1)

	n := <-ch
	assert.Equal(s.T(), float64(100), n.Time)

	s.Require().NoError(tee.Close())
}
