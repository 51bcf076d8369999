package oi

import "sort"

// Side holds open interest for one option type at a strike.
// PreviousOI is the exchange's prior OI-update value, not the previous poll.
type Side struct {
	OI         int64   `json:"oi"`
	PreviousOI int64   `json:"previous_oi"`
	Delta      float64 `json:"delta,omitempty"`
}

// Change returns OI minus previous OI. A nil side contributes nothing.
func (s *Side) Change() int64 {
	if s == nil {
		return 0
	}
	return s.OI - s.PreviousOI
}

// Open returns the current OI, or 0 for a nil side.
func (s *Side) Open() int64 {
	if s == nil {
		return 0
	}
	return s.OI
}

// Strike is one row of the option chain. Call or Put is nil when the feed
// omitted that side.
type Strike struct {
	Price float64 `json:"strike"`
	Call  *Side   `json:"call,omitempty"`
	Put   *Side   `json:"put,omitempty"`
}

// Snapshot is a normalized option chain as received for one poll.
// Strikes are kept sorted ascending by price.
type Snapshot struct {
	Expiry    string   `json:"expiry"`
	LastPrice float64  `json:"last_price"`
	Strikes   []Strike `json:"strikes"`
}

// NewSnapshot builds a snapshot and sorts the strikes ascending.
func NewSnapshot(expiry string, lastPrice float64, strikes []Strike) *Snapshot {
	sorted := make([]Strike, len(strikes))
	copy(sorted, strikes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})
	return &Snapshot{
		Expiry:    expiry,
		LastPrice: lastPrice,
		Strikes:   sorted,
	}
}

// Empty reports whether the snapshot carries no usable chain or price.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Strikes) == 0 || s.LastPrice <= 0
}

// WindowStats summarizes OI change across the strikes around the ATM strike.
// NetChange is put change minus call change; positive reads as bullish.
type WindowStats struct {
	ATM        float64 `json:"atm"`
	CallChange int64   `json:"call_change"`
	PutChange  int64   `json:"put_change"`
	NetChange  int64   `json:"net_change"`
	TotalOI    int64   `json:"total_oi"`
	Strikes    int     `json:"strikes"`
}

// GammaLevels are the strikes holding the largest call and put OI.
// A zero wall means the chain had no OI on that side.
type GammaLevels struct {
	CallWall float64 `json:"call_wall"`
	PutWall  float64 `json:"put_wall"`
}
