package types

// Tick is a single trade observation for a symbol. Time is expressed in
// seconds since the Unix epoch with sub-second precision preserved, because
// evaluation instants are fractional-second grid points and converting
// through time.Time would round-trip the value through nanoseconds.
type Tick struct {
	Symbol      string  `json:"symbol"`
	Time        float64 `json:"time"`
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume"`
}

// DedupTicks removes duplicate (symbol, time) entries from a slice sorted by
// time, keeping the last occurrence. The input is modified in place.
func DedupTicks(ticks []Tick) []Tick {
	if len(ticks) < 2 {
		return ticks
	}

	out := ticks[:1]

	for _, t := range ticks[1:] {
		last := &out[len(out)-1]
		if t.Symbol == last.Symbol && t.Time == last.Time {
			*last = t

			continue
		}

		out = append(out, t)
	}

	return out
}
