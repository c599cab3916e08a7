package session

import (
	"context"
	"fmt"
	"math"

	"github.com/cenkalti/backoff/v4"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/algorithm"
	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/sink"
	"github.com/rxtech-lab/argo-indicator/internal/timeline"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

const (
	// errorWindowSize is the number of recent evaluations the failure rate
	// is measured over.
	errorWindowSize = 20
	// writeRetries is the number of retries after a failed sink write
	// before the session fails.
	writeRetries = 3
)

// Orchestrator runs one session's evaluation loop. The same loop serves both
// modes: the generator decides when to evaluate, the provider decides what
// ticks are visible, and the algorithm is a pure function of its inputs. Only
// tick-triggered evaluation is live-specific, and it arrives through a
// channel the batch loop simply never receives on.
type Orchestrator struct {
	session   *Session
	algo      algorithm.Algorithm
	params    algorithm.Params
	generator timeline.Generator
	provider  datasource.TickProvider
	writer    sink.PointWriter
	logger    *logger.Logger

	triggers chan float64
	failures *errorWindow

	// last is the newest emitted timestamp; output must stay strictly
	// ascending even when a queued trigger races a grid instant.
	last float64
}

// NewOrchestrator wires a session to its timeline, data and output.
func NewOrchestrator(
	sess *Session,
	algo algorithm.Algorithm,
	params algorithm.Params,
	generator timeline.Generator,
	provider datasource.TickProvider,
	writer sink.PointWriter,
	log *logger.Logger,
) *Orchestrator {
	o := &Orchestrator{
		session:   sess,
		algo:      algo,
		params:    params,
		generator: generator,
		provider:  provider,
		writer:    writer,
		logger:    log,
		failures:  newErrorWindow(errorWindowSize),
		last:      math.Inf(-1),
	}

	if sess.Mode == types.ModeLive && sess.Variant.TickTriggered() {
		o.triggers = make(chan float64, 64)
	}

	return o
}

// OnTick requests an extra evaluation at the tick's own timestamp. Only
// live sessions whose primary window ends at the evaluation instant have
// triggers enabled; for everyone else this is a no-op. A full trigger queue
// drops the request, the next grid point covers the tick anyway.
func (o *Orchestrator) OnTick(tick types.Tick) {
	if o.triggers == nil || tick.Symbol != o.session.Symbol {
		return
	}

	select {
	case o.triggers <- tick.Time:
	default:
	}
}

// Run executes the evaluation loop until the timeline ends or the context is
// cancelled. A nil return means the timeline completed; context cancellation
// is reported as ctx.Err() so the manager can mark the session CANCELLED.
func (o *Orchestrator) Run(ctx context.Context) error {
	instants := make(chan float64)

	go func() {
		defer close(instants)

		for {
			instant, ok := o.generator.Next(ctx)
			if !ok {
				return
			}

			select {
			case instants <- instant:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			o.flush()

			return ctx.Err()
		case instant, ok := <-instants:
			if !ok {
				if err := o.writer.Flush(); err != nil {
					return err
				}

				return ctx.Err()
			}

			if err := o.evaluate(ctx, instant); err != nil {
				o.flush()

				return err
			}
		case instant := <-o.triggers:
			if err := o.evaluate(ctx, instant); err != nil {
				o.flush()

				return err
			}
		}
	}
}

// evaluate computes and persists one point. Per-point failures produce an
// undefined point and count toward the failure rate; only exhausted sink
// retries or an exceeded failure rate end the session. Instants at or before
// the newest emitted timestamp are skipped: a queued tick trigger can be
// selected after a later grid instant, and a tick landing exactly on a grid
// instant must not produce a second row.
func (o *Orchestrator) evaluate(ctx context.Context, instant float64) error {
	if instant <= o.last {
		return nil
	}

	value, evalErr := o.compute(ctx, instant)

	o.failures.record(evalErr != nil)

	if evalErr != nil {
		o.logger.Warn("point evaluation failed",
			zap.String("session_id", o.session.ID),
			zap.Float64("instant", instant),
			zap.Error(evalErr))
	}

	point := types.ComputedPoint{Time: instant, Value: value}

	write := func() error {
		return o.writer.Write(o.session.Key(), point)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), writeRetries), ctx)

	if err := backoff.Retry(write, policy); err != nil {
		return errors.Wrap(errors.ErrCodeRetriesExhausted, "failed to persist point", err)
	}

	o.session.addWritten(1)
	o.last = instant

	if o.failures.exceeded() {
		return errors.Newf(errors.ErrCodeErrorRateExceeded,
			"more than half of the last %d evaluations failed", errorWindowSize)
	}

	return nil
}

// compute runs the algorithm with panic containment. A panicking algorithm
// yields an undefined point, never a crashed session.
func (o *Orchestrator) compute(ctx context.Context, instant float64) (value optional.Option[float64], err error) {
	defer func() {
		if r := recover(); r != nil {
			value = optional.None[float64]()
			err = errors.Newf(errors.ErrCodeAlgorithmPanic, "algorithm panicked: %v", r)
		}
	}()

	ticks, err := o.provider.QueryUpTo(ctx, o.session.Symbol, instant)
	if err != nil {
		return optional.None[float64](), errors.Wrap(errors.ErrCodeComputationFailed, "tick query failed", err)
	}

	value = o.algo.Compute(ticks, o.params, instant)

	if value.IsSome() {
		if lo, hi, bounded := o.session.Variant.Category.Bounds(); bounded {
			v := value.Unwrap()
			if v < lo || v > hi {
				return optional.None[float64](), errors.Newf(errors.ErrCodeValueOutOfBounds,
					"value %v outside [%v, %v] for category %s", v, lo, hi, o.session.Variant.Category)
			}
		}
	}

	return value, nil
}

func (o *Orchestrator) flush() {
	if err := o.writer.Flush(); err != nil {
		o.logger.Error("final flush failed",
			zap.String("session_id", o.session.ID),
			zap.Error(err))
	}
}

// errorWindow tracks evaluation outcomes over a fixed-size rolling window.
type errorWindow struct {
	outcomes []bool
	next     int
	filled   int
	failed   int
}

func newErrorWindow(size int) *errorWindow {
	return &errorWindow{outcomes: make([]bool, size)}
}

func (w *errorWindow) record(failure bool) {
	if w.filled == len(w.outcomes) && w.outcomes[w.next] {
		w.failed--
	}

	w.outcomes[w.next] = failure
	if failure {
		w.failed++
	}

	w.next = (w.next + 1) % len(w.outcomes)
	if w.filled < len(w.outcomes) {
		w.filled++
	}
}

// exceeded reports whether failures dominate a fully observed window. The
// rate is meaningless before the window fills, so early failures never
// escalate a session that is still warming up.
func (w *errorWindow) exceeded() bool {
	return w.filled == len(w.outcomes) && w.failed*2 > len(w.outcomes)
}

// String reports the window state for diagnostics.
func (w *errorWindow) String() string {
	return fmt.Sprintf("errorWindow{failed: %d/%d}", w.failed, w.filled)
}
