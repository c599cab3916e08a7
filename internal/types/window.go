package types

// Window is one lookback span [T-T1, T-T2] relative to an evaluation
// instant T. Offsets are seconds; T1 must be strictly greater than T2.
// A trailing offset of zero means the window ends at the instant itself.
type Window struct {
	T1 float64 `yaml:"t1" json:"t1" jsonschema:"title=Leading Offset,description=Start of the lookback window in seconds before the evaluation instant,minimum=0" validate:"gt=0"`
	T2 float64 `yaml:"t2" json:"t2" jsonschema:"title=Trailing Offset,description=End of the lookback window in seconds before the evaluation instant,minimum=0" validate:"gte=0"`
}

// Span returns the window length in seconds.
func (w Window) Span() float64 {
	return w.T1 - w.T2
}

// Bounds returns the absolute window edges [lo, hi] for an evaluation
// instant, both inclusive.
func (w Window) Bounds(at float64) (lo, hi float64) {
	return at - w.T1, at - w.T2
}
