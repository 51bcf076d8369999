package session

import (
	"time"

	"github.com/dgnsrekt/oi-scalper/internal/oi"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

// PriceSample is one observed spot price.
type PriceSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// DecisionRecord is one row of the decision log.
type DecisionRecord struct {
	Timestamp     time.Time       `json:"timestamp"`
	Expiry        string          `json:"expiry"`
	Spot          float64         `json:"spot"`
	EMA           float64         `json:"ema"`
	RSI           float64         `json:"rsi"`
	NetChange     int64           `json:"net_change"`
	OISlope       int64           `json:"oi_slope"`
	Trend         signal.Trend    `json:"trend"`
	Momentum      signal.Momentum `json:"momentum"`
	Buildup       oi.Buildup      `json:"buildup"`
	Signal        signal.Label    `json:"signal"`
	Advisory      string          `json:"advisory,omitempty"`
	GammaAdvisory string          `json:"gamma_advisory,omitempty"`
	CallWall      float64         `json:"call_wall"`
	PutWall       float64         `json:"put_wall"`
	Suggestion    string          `json:"suggestion"`
	Strike        float64         `json:"suggested_strike,omitempty"`
}

// Color is the dashboard colour hint for the record's signal.
func (r DecisionRecord) Color() string {
	return r.Signal.Color()
}

// sameTick reports whether two timestamps fall in the same wall-clock second.
func sameTick(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
