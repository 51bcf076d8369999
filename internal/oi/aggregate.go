// Package oi reduces an option chain snapshot to the open interest statistics
// the signal classifier works from.
package oi

import "math"

// DefaultHalfWidth is the number of strikes taken on each side of ATM.
const DefaultHalfWidth = 5

// LocateATM returns the strike closest to spot. On an exact tie the smaller
// strike wins. Returns 0 for an empty chain.
func LocateATM(snap *Snapshot, spot float64) float64 {
	idx := atmIndex(snap, spot)
	if idx < 0 {
		return 0
	}
	return snap.Strikes[idx].Price
}

func atmIndex(snap *Snapshot, spot float64) int {
	if snap == nil || len(snap.Strikes) == 0 {
		return -1
	}

	best := 0
	bestDist := math.Abs(snap.Strikes[0].Price - spot)
	for i := 1; i < len(snap.Strikes); i++ {
		// strict less-than keeps the earlier (smaller) strike on ties
		if d := math.Abs(snap.Strikes[i].Price - spot); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// WindowedChange sums call and put OI change over the strikes within
// halfWidth positions of atm. The window is truncated at the chain edges.
// Sides missing from the feed contribute zero.
func WindowedChange(snap *Snapshot, atm float64, halfWidth int) WindowStats {
	stats := WindowStats{ATM: atm}
	if snap == nil || len(snap.Strikes) == 0 {
		return stats
	}
	if halfWidth < 0 {
		halfWidth = 0
	}

	idx := -1
	for i, s := range snap.Strikes {
		if s.Price == atm {
			idx = i
			break
		}
	}
	if idx < 0 {
		// atm not on the chain; fall back to the nearest listed strike
		idx = atmIndex(snap, atm)
		stats.ATM = snap.Strikes[idx].Price
	}

	lo := max(0, idx-halfWidth)
	hi := min(len(snap.Strikes)-1, idx+halfWidth)

	for _, s := range snap.Strikes[lo : hi+1] {
		stats.CallChange += s.Call.Change()
		stats.PutChange += s.Put.Change()
		stats.TotalOI += s.Call.Open() + s.Put.Open()
		stats.Strikes++
	}
	stats.NetChange = stats.PutChange - stats.CallChange
	return stats
}

// GammaWalls finds the strikes with the highest call OI and highest put OI
// across the full chain in one pass. Ties keep the lower strike. Strikes with
// a missing side are skipped for that side only.
func GammaWalls(snap *Snapshot) GammaLevels {
	var levels GammaLevels
	if snap == nil {
		return levels
	}

	var maxCall, maxPut int64
	for _, s := range snap.Strikes {
		if s.Call != nil && s.Call.OI > maxCall {
			maxCall = s.Call.OI
			levels.CallWall = s.Price
		}
		if s.Put != nil && s.Put.OI > maxPut {
			maxPut = s.Put.OI
			levels.PutWall = s.Price
		}
	}
	return levels
}

// Aggregate runs ATM location and the windowed change in one call.
func Aggregate(snap *Snapshot, halfWidth int) WindowStats {
	atm := LocateATM(snap, snap.LastPrice)
	return WindowedChange(snap, atm, halfWidth)
}
