package session

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/algorithm"
	"github.com/rxtech-lab/argo-indicator/internal/config"
	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/feed"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/sink"
	"github.com/rxtech-lab/argo-indicator/internal/timeline"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

const (
	// cancelTimeout bounds how long CancelSession waits for the loop to stop.
	cancelTimeout = time.Second
	// sessionRetention is how long a terminal session stays queryable in
	// memory before it is reaped. The durable record lives in the sink.
	sessionRetention = time.Hour
)

// StatusWriter persists session lifecycle rows so partial output can be told
// apart from complete output after the process exits.
type StatusWriter interface {
	WriteSessionState(rec sink.SessionRecord) error
}

// Manager creates, tracks and tears down sessions. All sessions share one
// durable sink and one notification hub; each gets its own timeline,
// provider and orchestrator.
type Manager struct {
	cfg      *config.EngineConfig
	registry algorithm.Registry
	source   datasource.DataSource
	tickFeed feed.TickFeed
	writer   sink.PointWriter
	status   StatusWriter
	hub      *sink.Hub
	clock    timeline.Clock
	logger   *logger.Logger

	mu       sync.Mutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}

	// finishedAt is set under the manager mutex when the session reaches a
	// terminal state; zero while running.
	finishedAt time.Time
}

// NewManager creates a session manager. The tick feed may be nil when only
// batch sessions will be created; the data source may be nil for live-only
// use; a nil status writer skips durable lifecycle rows.
func NewManager(
	cfg *config.EngineConfig,
	registry algorithm.Registry,
	source datasource.DataSource,
	tickFeed feed.TickFeed,
	writer sink.PointWriter,
	status StatusWriter,
	hub *sink.Hub,
	clock timeline.Clock,
	log *logger.Logger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		registry: registry,
		source:   source,
		tickFeed: tickFeed,
		writer:   writer,
		status:   status,
		hub:      hub,
		clock:    clock,
		logger:   log,
		sessions: make(map[string]*managedSession),
	}
}

// CreateSession validates the request, builds the pipeline for the requested
// mode and starts the evaluation loop. Configuration problems are returned
// synchronously; the session is only registered once it can actually run.
func (m *Manager) CreateSession(ctx context.Context, symbol string, variantID string, mode types.Mode, r optional.Option[types.TimeRange]) (*Session, error) {
	variant, err := m.cfg.VariantByID(variantID)
	if err != nil {
		return nil, err
	}

	algo, err := m.registry.Get(variant.Algorithm)
	if err != nil {
		return nil, err
	}

	if algo.Category() != variant.Category {
		return nil, errors.Newf(errors.ErrCodeUnsupportedCategory,
			"algorithm %q serves category %q, variant %q declares %q",
			variant.Algorithm, algo.Category(), variant.ID, variant.Category)
	}

	params := algorithm.Params{
		Windows: variant.Windows,
		Num:     variant.Params,
		Str:     variant.StringParams,
	}
	if err := algo.ValidateParams(params); err != nil {
		return nil, err
	}

	sess := NewSession(symbol, *variant, mode, r)

	var (
		generator timeline.Generator
		provider  datasource.TickProvider
		runFeed   func(ctx context.Context, o *Orchestrator)
	)

	switch mode {
	case types.ModeBatch:
		generator, provider, err = m.batchPipeline(ctx, sess)
	case types.ModeLive:
		generator, provider, runFeed, err = m.livePipeline(sess)
	default:
		err = errors.Newf(errors.ErrCodeInvalidParameter, "unknown mode %q", mode)
	}

	if err != nil {
		return nil, err
	}

	writer := sink.NewTee(m.writer, sink.NewHubWriter(m.hub))
	orch := NewOrchestrator(sess, algo, params, generator, provider, writer, m.logger)

	runCtx, cancel := context.WithCancel(context.Background())
	managed := &managedSession{
		session: sess,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.reapLocked()
	m.sessions[sess.ID] = managed
	m.mu.Unlock()

	if runFeed != nil {
		go runFeed(runCtx, orch)
	}

	go m.run(runCtx, orch, managed)

	m.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("symbol", symbol),
		zap.String("variant", variantID),
		zap.String("mode", string(mode)))

	return sess, nil
}

// batchPipeline loads the dataset slice the session needs and returns a grid
// generator over the requested range.
func (m *Manager) batchPipeline(ctx context.Context, sess *Session) (timeline.Generator, datasource.TickProvider, error) {
	if m.source == nil {
		return nil, nil, errors.New(errors.ErrCodeDataSourceUnavailable, "no data source configured")
	}

	if sess.Range.IsNone() {
		return nil, nil, errors.New(errors.ErrCodeInvalidRange, "batch session requires a time range")
	}

	r := sess.Range.Unwrap()
	if r.End <= r.Start {
		return nil, nil, errors.Newf(errors.ErrCodeInvalidRange,
			"range end (%v) must be after start (%v)", r.End, r.Start)
	}

	// The window at the first grid point reaches back before the range, and
	// the price-family fallback may need one tick before that.
	load := types.TimeRange{
		Start: r.Start - sess.Variant.MaxLookback() - m.cfg.RingMargin,
		End:   r.End,
	}

	ticks, err := m.source.LoadSymbol(ctx, sess.Symbol, load)
	if err != nil {
		return nil, nil, err
	}

	// Each session owns its snapshot; later loads for the same symbol never
	// change what this session sees.
	provider := datasource.NewSnapshot(sess.Symbol, ticks)

	return timeline.NewBatchGenerator(r, sess.Variant.RefreshInterval), provider, nil
}

// livePipeline builds the ring buffer and the feed pump for a live session.
func (m *Manager) livePipeline(sess *Session) (timeline.Generator, datasource.TickProvider, func(context.Context, *Orchestrator), error) {
	if m.tickFeed == nil {
		return nil, nil, nil, errors.New(errors.ErrCodeInvalidProvider, "no live feed configured")
	}

	ring := datasource.NewRingBuffer(sess.Variant.MaxLookback() + m.cfg.RingMargin)

	runFeed := func(ctx context.Context, orch *Orchestrator) {
		for tick, err := range m.tickFeed.Stream(ctx, []string{sess.Symbol}) {
			if err != nil {
				m.logger.Warn("live feed error",
					zap.String("session_id", sess.ID),
					zap.Error(err))

				continue
			}

			ring.Append(tick)
			orch.OnTick(tick)
		}
	}

	return timeline.NewLiveGenerator(sess.Variant.RefreshInterval, m.clock), ring, runFeed, nil
}

// run drives the orchestrator and records the terminal state, both in memory
// and in the durable session row.
func (m *Manager) run(ctx context.Context, orch *Orchestrator, managed *managedSession) {
	defer close(managed.done)

	sess := managed.session

	if err := sess.transition(types.SessionStateRunning, nil); err != nil {
		return
	}

	// A RUNNING row that never advances marks the output as partial after a
	// crash.
	m.recordStatus(sess)

	err := orch.Run(ctx)

	switch {
	case err == nil:
		_ = sess.transition(types.SessionStateCompleted, nil)
		m.logger.Info("session completed", zap.String("session_id", sess.ID))
	case errors.Is(err, context.Canceled):
		_ = sess.transition(types.SessionStateCancelled, nil)
		m.logger.Info("session cancelled", zap.String("session_id", sess.ID))
	default:
		_ = sess.transition(types.SessionStateFailed, err)
		m.logger.Error("session failed",
			zap.String("session_id", sess.ID),
			zap.Error(err))
	}

	m.recordStatus(sess)

	m.mu.Lock()
	managed.finishedAt = time.Now()
	m.mu.Unlock()
}

// recordStatus upserts the session's lifecycle row.
func (m *Manager) recordStatus(sess *Session) {
	if m.status == nil {
		return
	}

	st := sess.Status()
	rec := sink.SessionRecord{
		SessionID:     st.ID,
		Symbol:        st.Symbol,
		Category:      st.Category,
		VariantID:     st.VariantID,
		Mode:          st.Mode,
		State:         st.State,
		Error:         st.Error,
		PointsWritten: st.PointsWritten,
	}

	if err := m.status.WriteSessionState(rec); err != nil {
		m.logger.Error("failed to persist session state",
			zap.String("session_id", st.ID),
			zap.Error(err))
	}
}

// reapLocked drops terminal sessions past the retention window. Callers hold
// m.mu.
func (m *Manager) reapLocked() {
	cutoff := time.Now().Add(-sessionRetention)

	for id, managed := range m.sessions {
		if !managed.finishedAt.IsZero() && managed.finishedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}

// GetSession returns a session by id.
func (m *Manager) GetSession(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	managed, ok := m.sessions[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}

	return managed.session, nil
}

// ListSessions returns a status snapshot of every known session.
func (m *Manager) ListSessions() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, 0, len(m.sessions))
	for _, managed := range m.sessions {
		out = append(out, managed.session.Status())
	}

	return out
}

// CancelSession stops a running session and waits briefly for its loop to
// wind down. Cancelling a terminal session is an error.
func (m *Manager) CancelSession(id string) error {
	m.mu.Lock()
	managed, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}

	if managed.session.State().Terminal() {
		return errors.Newf(errors.ErrCodeSessionNotCancelable,
			"session %s is already %s", id, managed.session.State())
	}

	managed.cancel()

	select {
	case <-managed.done:
	case <-time.After(cancelTimeout):
		m.logger.Warn("session did not stop within the cancel timeout",
			zap.String("session_id", id))
	}

	return nil
}

// Wait blocks until the session's loop has exited.
func (m *Manager) Wait(id string) error {
	m.mu.Lock()
	managed, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}

	<-managed.done

	return managed.session.Err()
}

// Close cancels every active session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*managedSession, 0, len(m.sessions))

	for _, managed := range m.sessions {
		all = append(all, managed)
	}
	m.mu.Unlock()

	for _, managed := range all {
		managed.cancel()
		<-managed.done
	}
}
