package oi

// Strike suggestions.
const (
	SuggestCall = "BUY CALL"
	SuggestPut  = "BUY PUT"
	SuggestNone = "NO TRADE"
)

// Delta band for a tradeable near-the-money option. Put deltas use the
// negated band.
const (
	MinSuggestDelta = 0.4
	MaxSuggestDelta = 0.65
)

// SuggestStrike looks at the ATM strike and its immediate neighbours for an
// option whose delta sits in the tradeable band while OI is being written
// against the opposite side. A call needs call OI rising and put OI falling;
// a put needs the reverse. The highest qualifying strike wins and a call is
// preferred over a put. It returns SuggestNone and 0 when nothing qualifies.
func SuggestStrike(snap *Snapshot, spot float64) (string, float64) {
	idx := atmIndex(snap, spot)
	if idx < 0 {
		return SuggestNone, 0
	}

	var call, put float64
	hasCall, hasPut := false, false
	for i := max(idx-1, 0); i <= min(idx+1, len(snap.Strikes)-1); i++ {
		st := snap.Strikes[i]
		if st.Call == nil || st.Put == nil {
			continue
		}
		callUp, putUp := st.Call.Change(), st.Put.Change()

		if inBand(st.Call.Delta) && callUp > 0 && putUp < 0 {
			call, hasCall = st.Price, true
		}
		if inBand(-st.Put.Delta) && putUp > 0 && callUp < 0 {
			put, hasPut = st.Price, true
		}
	}

	switch {
	case hasCall:
		return SuggestCall, call
	case hasPut:
		return SuggestPut, put
	}
	return SuggestNone, 0
}

func inBand(delta float64) bool {
	return delta >= MinSuggestDelta && delta <= MaxSuggestDelta
}
