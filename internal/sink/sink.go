package sink

import (
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// PointWriter consumes computed points in grid order. Implementations buffer
// internally; Flush blocks until everything written so far is durable.
type PointWriter interface {
	Write(key types.SeriesKey, point types.ComputedPoint) error
	Flush() error
	Close() error
}
