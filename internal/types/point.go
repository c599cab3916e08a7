package types

import (
	"github.com/moznion/go-optional"
)

// ComputedPoint is one evaluated value of a variant at a grid instant.
// Value is None for instants where the algorithm could not produce a value;
// such points are still written so the output grid stays complete.
type ComputedPoint struct {
	Time  float64
	Value optional.Option[float64]
}

// SeriesKey identifies the output series a point belongs to.
type SeriesKey struct {
	SessionID string
	Symbol    string
	Category  Category
	VariantID string
}

// SeriesName returns the external resource name of the series,
// {category}_{variantId}.
func (k SeriesKey) SeriesName() string {
	return string(k.Category) + "_" + k.VariantID
}

// Notification is the event emitted to live subscribers for every computed
// point. Value is nil when the point is undefined.
type Notification struct {
	SessionID string   `json:"session_id"`
	Symbol    string   `json:"symbol"`
	VariantID string   `json:"variant_id"`
	Category  Category `json:"category"`
	Time      float64  `json:"time"`
	Value     *float64 `json:"value"`
}
