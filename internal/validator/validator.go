package validator

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sync"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/algorithm"
	"github.com/rxtech-lab/argo-indicator/internal/config"
	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/feed"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/session"
	"github.com/rxtech-lab/argo-indicator/internal/timeline"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Tolerance is the maximum absolute difference between a batch value and its
// replayed counterpart before the pair counts as a mismatch. The pipelines
// share every arithmetic path, so in practice the difference is exactly zero;
// the tolerance only absorbs value formatting at the comparison boundary.
const Tolerance = 1e-9

// Mismatch is one grid point where the two pipelines disagree.
type Mismatch struct {
	Time   float64
	Batch  optional.Option[float64]
	Replay optional.Option[float64]
}

func (m Mismatch) String() string {
	format := func(v optional.Option[float64]) string {
		if v.IsNone() {
			return "none"
		}

		return fmt.Sprintf("%.12g", v.Unwrap())
	}

	return fmt.Sprintf("t=%v batch=%s replay=%s", m.Time, format(m.Batch), format(m.Replay))
}

// Report summarizes one variant's consistency run.
type Report struct {
	VariantID    string
	Symbol       string
	BatchPoints  int
	ReplayPoints int
	Mismatches   []Mismatch
}

// OK reports whether the two pipelines produced identical series.
func (r Report) OK() bool {
	return r.BatchPoints == r.ReplayPoints && len(r.Mismatches) == 0
}

// Validator replays a historical range through the live pipeline and checks
// the output against the batch pipeline point by point. Any disagreement
// means the mode-independence guarantee is broken.
type Validator struct {
	source   datasource.DataSource
	registry algorithm.Registry
	logger   *logger.Logger
}

// New creates a validator over the given dataset.
func New(source datasource.DataSource, registry algorithm.Registry, log *logger.Logger) *Validator {
	return &Validator{
		source:   source,
		registry: registry,
		logger:   log,
	}
}

// Run compares batch and replayed-live output for one variant over a range.
func (v *Validator) Run(ctx context.Context, variant config.Variant, symbol string, r types.TimeRange) (Report, error) {
	report := Report{VariantID: variant.ID, Symbol: symbol}

	batch, err := v.runBatch(ctx, variant, symbol, r)
	if err != nil {
		return report, err
	}

	replay, err := v.runReplay(ctx, variant, symbol, r)
	if err != nil {
		return report, err
	}

	report.BatchPoints = len(batch)
	report.ReplayPoints = len(replay)

	for i := 0; i < len(batch) && i < len(replay); i++ {
		if !pointsEqual(batch[i], replay[i]) {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Time:   batch[i].Time,
				Batch:  batch[i].Value,
				Replay: replay[i].Value,
			})
		}
	}

	v.logger.Info("consistency run finished",
		zap.String("variant", variant.ID),
		zap.Int("points", report.BatchPoints),
		zap.Int("mismatches", len(report.Mismatches)))

	return report, nil
}

func (v *Validator) runBatch(ctx context.Context, variant config.Variant, symbol string, r types.TimeRange) ([]types.ComputedPoint, error) {
	load := types.TimeRange{Start: r.Start - variant.MaxLookback() - config.DefaultRingMargin, End: r.End}

	ticks, err := v.source.LoadSymbol(ctx, symbol, load)
	if err != nil {
		return nil, err
	}

	generator := timeline.NewBatchGenerator(r, variant.RefreshInterval)
	provider := datasource.NewSnapshot(symbol, ticks)

	return v.run(ctx, variant, symbol, generator, provider, types.ModeBatch, r)
}

// runReplay drives the live pipeline deterministically: a fake clock jumps
// the live generator from grid point to grid point, and the provider pulls
// replayed ticks into the ring buffer before answering each query, exactly
// as a real feed would have delivered them by that instant.
func (v *Validator) runReplay(ctx context.Context, variant config.Variant, symbol string, r types.TimeRange) ([]types.ComputedPoint, error) {
	interval := variant.RefreshInterval
	firstGrid := math.Ceil(r.Start/interval) * interval

	clock := timeline.NewFakeClock(firstGrid - interval/2)
	generator := &boundedGenerator{
		inner: timeline.NewLiveGenerator(interval, clock),
		end:   r.End,
	}

	ring := datasource.NewRingBuffer(variant.MaxLookback() + config.DefaultRingMargin)

	bounds := optional.Some(types.TimeRange{
		Start: r.Start - variant.MaxLookback() - config.DefaultRingMargin,
		End:   r.End,
	})
	replay := feed.NewReplayFeed(v.source, bounds)

	next, stop := iter.Pull2(replay.Stream(ctx, []string{symbol}))
	defer stop()

	provider := &fillingProvider{ring: ring, next: next}

	return v.run(ctx, variant, symbol, generator, provider, types.ModeLive, r)
}

func (v *Validator) run(
	ctx context.Context,
	variant config.Variant,
	symbol string,
	generator timeline.Generator,
	provider datasource.TickProvider,
	mode types.Mode,
	r types.TimeRange,
) ([]types.ComputedPoint, error) {
	algo, err := v.registry.Get(variant.Algorithm)
	if err != nil {
		return nil, err
	}

	params := algorithm.Params{
		Windows: variant.Windows,
		Num:     variant.Params,
		Str:     variant.StringParams,
	}
	if err := algo.ValidateParams(params); err != nil {
		return nil, err
	}

	// The replay run must not re-trigger on ticks: extra evaluations would
	// add points the batch grid does not have. Mode batch disables them.
	sess := session.NewSession(symbol, variant, types.ModeBatch, optional.Some(r))
	collector := &seriesCollector{}

	orch := session.NewOrchestrator(sess, algo, params, generator, provider, collector, v.logger)
	if err := orch.Run(ctx); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeComputationFailed, err, "%s run failed", mode)
	}

	return collector.all(), nil
}

func pointsEqual(a, b types.ComputedPoint) bool {
	if a.Time != b.Time {
		return false
	}

	if a.Value.IsNone() || b.Value.IsNone() {
		return a.Value.IsNone() == b.Value.IsNone()
	}

	return math.Abs(a.Value.Unwrap()-b.Value.Unwrap()) <= Tolerance
}

// boundedGenerator ends an otherwise open-ended live timeline at a fixed
// instant.
type boundedGenerator struct {
	inner timeline.Generator
	end   float64
}

func (g *boundedGenerator) Next(ctx context.Context) (float64, bool) {
	instant, ok := g.inner.Next(ctx)
	if !ok || instant > g.end {
		return 0, false
	}

	return instant, true
}

// fillingProvider feeds the ring buffer from the replay stream up to each
// query instant before answering from the ring, mirroring what the live feed
// goroutine would have appended by that time.
type fillingProvider struct {
	ring    *datasource.RingBuffer
	next    func() (types.Tick, error, bool)
	pending optional.Option[types.Tick]
	drained bool
}

func (p *fillingProvider) QueryUpTo(ctx context.Context, symbol string, upTo float64) ([]types.Tick, error) {
	if p.pending.IsSome() {
		tick := p.pending.Unwrap()
		if tick.Time <= upTo {
			p.ring.Append(tick)
			p.pending = optional.None[types.Tick]()
		}
	}

	for p.pending.IsNone() && !p.drained {
		tick, err, ok := p.next()
		if !ok {
			p.drained = true

			break
		}

		if err != nil {
			return nil, err
		}

		if tick.Time > upTo {
			p.pending = optional.Some(tick)

			break
		}

		p.ring.Append(tick)
	}

	return p.ring.QueryUpTo(ctx, symbol, upTo)
}

// seriesCollector is a PointWriter accumulating points in memory.
type seriesCollector struct {
	mu     sync.Mutex
	points []types.ComputedPoint
}

func (c *seriesCollector) Write(_ types.SeriesKey, point types.ComputedPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.points = append(c.points, point)

	return nil
}

func (c *seriesCollector) Flush() error { return nil }
func (c *seriesCollector) Close() error { return nil }

func (c *seriesCollector) all() []types.ComputedPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.ComputedPoint, len(c.points))
	copy(out, c.points)

	return out
}
