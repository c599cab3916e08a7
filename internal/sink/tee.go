package sink

import (
	"github.com/rxtech-lab/argo-indicator/internal/types"
)

// Tee is a PointWriter that forwards every call to each of its writers in
// order. A live session tees its durable sink with the notification hub.
type Tee struct {
	writers []PointWriter
}

// NewTee combines the given writers into one.
func NewTee(writers ...PointWriter) *Tee {
	return &Tee{writers: writers}
}

// Write implements PointWriter. It stops at the first failing writer.
func (t *Tee) Write(key types.SeriesKey, point types.ComputedPoint) error {
	for _, w := range t.writers {
		if err := w.Write(key, point); err != nil {
			return err
		}
	}

	return nil
}

// Flush implements PointWriter.
func (t *Tee) Flush() error {
	for _, w := range t.writers {
		if err := w.Flush(); err != nil {
			return err
		}
	}

	return nil
}

// Close implements PointWriter.
func (t *Tee) Close() error {
	var firstErr error

	for _, w := range t.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
