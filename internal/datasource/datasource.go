package datasource

import (
	"context"
	"iter"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// TickProvider answers ordered tick history queries for the computation
// loop. Both the historical store and the live ring buffer implement it, so
// the orchestrator never knows which mode it is running in.
type TickProvider interface {
	// QueryUpTo returns every known tick for symbol with time <= upTo,
	// ordered by time ascending with duplicate timestamps collapsed.
	// The returned slice must not be modified by the caller.
	QueryUpTo(ctx context.Context, symbol string, upTo float64) ([]types.Tick, error)
}

// DataSource is the historical tick store backing batch sessions, dataset
// inspection and replay runs.
type DataSource interface {
	// Initialize points the source at a dataset file (parquet or CSV).
	Initialize(path string) error

	// LoadSymbol returns the deduplicated, time-ordered ticks for one
	// symbol inside the given range. The returned slice is a snapshot owned
	// by the caller; concurrent loads never share or mutate it, so each
	// session's visible history is fixed for its whole run.
	LoadSymbol(ctx context.Context, symbol string, r types.TimeRange) ([]types.Tick, error)

	// ReadAll streams ticks for a symbol in time order.
	ReadAll(symbol string, r optional.Option[types.TimeRange]) iter.Seq2[types.Tick, error]

	// Count returns the number of ticks for a symbol, optionally bounded.
	Count(symbol string, r optional.Option[types.TimeRange]) (int, error)

	// Range returns the first and last tick time for a symbol.
	Range(symbol string) (types.TimeRange, error)

	// Symbols lists the distinct symbols present in the dataset.
	Symbols() ([]string, error)

	// Close releases the underlying database.
	Close() error
}
