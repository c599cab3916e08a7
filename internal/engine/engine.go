package engine

import (
	"context"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-indicator/internal/algorithm"
	"github.com/rxtech-lab/argo-indicator/internal/config"
	"github.com/rxtech-lab/argo-indicator/internal/datasource"
	"github.com/rxtech-lab/argo-indicator/internal/feed"
	"github.com/rxtech-lab/argo-indicator/internal/logger"
	"github.com/rxtech-lab/argo-indicator/internal/session"
	"github.com/rxtech-lab/argo-indicator/internal/sink"
	"github.com/rxtech-lab/argo-indicator/internal/timeline"
	"github.com/rxtech-lab/argo-indicator/internal/types"
	"github.com/rxtech-lab/argo-indicator/internal/validator"
	"github.com/rxtech-lab/argo-indicator/pkg/errors"
)

// Engine assembles the full indicator pipeline from a config: algorithm
// registry, historical store, live feed, durable sink and session manager.
// It is the single entry point the CLI and the API server build on.
type Engine struct {
	cfg      *config.EngineConfig
	logger   *logger.Logger
	registry algorithm.Registry
	source   *datasource.DuckDBSource
	sink     *sink.DuckDBSink
	hub      *sink.Hub
	manager  *session.Manager
}

// NewEngine wires an engine from a validated config.
func NewEngine(cfg *config.EngineConfig, log *logger.Logger) (*Engine, error) {
	registry := algorithm.NewRegistry()

	pointSink, err := sink.NewDuckDBSink(cfg.OutputPath, cfg.FlushSize, log)
	if err != nil {
		return nil, err
	}

	var source *datasource.DuckDBSource

	if cfg.DataPath != "" {
		source, err = datasource.NewDuckDBSource(log)
		if err != nil {
			pointSink.Close()

			return nil, err
		}

		if err := source.Initialize(cfg.DataPath); err != nil {
			source.Close()
			pointSink.Close()

			return nil, err
		}
	}

	tickFeed, err := buildFeed(cfg.Feed, log)
	if err != nil {
		if source != nil {
			source.Close()
		}

		pointSink.Close()

		return nil, err
	}

	hub := sink.NewHub()

	// The manager needs a plain interface; a nil *DuckDBSource must stay a
	// nil interface.
	var managerSource datasource.DataSource
	if source != nil {
		managerSource = source
	}

	manager := session.NewManager(cfg, registry, managerSource, tickFeed, pointSink, pointSink, hub,
		timeline.NewSystemClock(), log)

	log.Info("engine initialized",
		zap.String("data_path", cfg.DataPath),
		zap.String("output_path", cfg.OutputPath),
		zap.Int("variants", len(cfg.Variants)))

	return &Engine{
		cfg:      cfg,
		logger:   log,
		registry: registry,
		source:   source,
		sink:     pointSink,
		hub:      hub,
		manager:  manager,
	}, nil
}

func buildFeed(cfg config.FeedConfig, log *logger.Logger) (feed.TickFeed, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "binance":
		return feed.NewBinanceFeed(log), nil
	case "ws":
		if cfg.URL == "" {
			return nil, errors.New(errors.ErrCodeInvalidProvider, "ws feed requires a url")
		}

		return feed.NewWSFeed(cfg.URL, log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unknown feed provider %q", cfg.Provider)
	}
}

// CreateSession starts a computation session.
func (e *Engine) CreateSession(ctx context.Context, symbol, variantID string, mode types.Mode, r optional.Option[types.TimeRange]) (*session.Session, error) {
	return e.manager.CreateSession(ctx, symbol, variantID, mode, r)
}

// CancelSession stops a running session.
func (e *Engine) CancelSession(id string) error {
	return e.manager.CancelSession(id)
}

// GetSession returns a session by id.
func (e *Engine) GetSession(id string) (*session.Session, error) {
	return e.manager.GetSession(id)
}

// ListSessions returns status snapshots of all sessions.
func (e *Engine) ListSessions() []session.Status {
	return e.manager.ListSessions()
}

// Wait blocks until the session's loop has exited and returns its error.
func (e *Engine) Wait(id string) error {
	return e.manager.Wait(id)
}

// Hub exposes the notification hub for live subscribers.
func (e *Engine) Hub() *sink.Hub {
	return e.hub
}

// ExportParquet writes one parquet file per series of the session into dir.
func (e *Engine) ExportParquet(sessionID, dir string) ([]string, error) {
	return e.sink.ExportParquet(sessionID, dir)
}

// ReadPoints returns a stored series for inspection.
func (e *Engine) ReadPoints(sessionID, symbol, variantID string) ([]types.ComputedPoint, error) {
	return e.sink.ReadPoints(sessionID, symbol, variantID)
}

// ReadSessionState returns the durable lifecycle row for a session. Any state
// other than COMPLETED means the stored series is partial.
func (e *Engine) ReadSessionState(sessionID string) (sink.SessionRecord, error) {
	return e.sink.ReadSessionState(sessionID)
}

// Verify replays a range through the live pipeline and compares it against
// the batch pipeline for one variant.
func (e *Engine) Verify(ctx context.Context, variantID, symbol string, r types.TimeRange) (validator.Report, error) {
	if e.source == nil {
		return validator.Report{}, errors.New(errors.ErrCodeDataSourceUnavailable, "verification requires a data path")
	}

	variant, err := e.cfg.VariantByID(variantID)
	if err != nil {
		return validator.Report{}, err
	}

	return validator.New(e.source, e.registry, e.logger).Run(ctx, *variant, symbol, r)
}

// Close cancels all sessions and releases storage.
func (e *Engine) Close() error {
	e.manager.Close()

	if e.source != nil {
		if err := e.source.Close(); err != nil {
			e.logger.Warn("failed to close data source", zap.Error(err))
		}
	}

	return e.sink.Close()
}
