package indicator

const (
	// DefaultRSIPeriod is the Wilder lookback.
	DefaultRSIPeriod = 14

	// NeutralRSI is reported while the history is too short to be meaningful.
	NeutralRSI = 50.0
)

// RSI returns the Wilder relative strength index of history.
//
// Gains and losses are smoothed independently with factor 1/period, seeded
// with the first delta. When the history holds fewer than period samples the
// neutral value 50 is returned. A run with no losses saturates at 100.
func RSI(history []float64, period int) float64 {
	if period < 1 {
		period = DefaultRSIPeriod
	}
	if len(history) < period || len(history) < 2 {
		return NeutralRSI
	}

	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(history); i++ {
		gain, loss := split(history[i] - history[i-1])
		if i == 1 {
			avgGain, avgLoss = gain, loss
			continue
		}
		avgGain = alpha*gain + (1-alpha)*avgGain
		avgLoss = alpha*loss + (1-alpha)*avgLoss
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return NeutralRSI
		}
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}
