// Package indicator computes technical indicators over an ordered price history.
//
// Every function recomputes from the full slice it is given. Nothing here keeps
// state between calls, so results depend only on the current history.
package indicator

// DefaultEMASpan is the span used for the trend EMA.
const DefaultEMASpan = 9

// EMA returns the exponential moving average of history with smoothing factor
// 2/(span+1), seeded with the first value (no simple-average warm-up).
// A history shorter than span still yields a value. Empty history returns 0.
func EMA(history []float64, span int) float64 {
	if len(history) == 0 {
		return 0
	}
	if span < 1 {
		span = 1
	}

	alpha := 2.0 / float64(span+1)
	ema := history[0]
	for _, v := range history[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}
