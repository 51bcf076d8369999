package signal

import "github.com/dgnsrekt/oi-scalper/internal/oi"

// Trend is spot relative to its EMA.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
)

// TrendOf reports BULLISH when spot is strictly above the EMA.
func TrendOf(spot, ema float64) Trend {
	if spot > ema {
		return TrendBullish
	}
	return TrendBearish
}

// Momentum is the sign of the OI slope (net change now vs N polls ago).
// FLAT means the slope is zero or there is not enough history yet.
type Momentum string

const (
	MomentumPositive Momentum = "POSITIVE"
	MomentumNegative Momentum = "NEGATIVE"
	MomentumFlat     Momentum = "FLAT"
)

// MomentumOf maps a slope onto a Momentum. ready is false while the
// net-change history is shorter than the lookback.
func MomentumOf(slope int64, ready bool) Momentum {
	switch {
	case !ready || slope == 0:
		return MomentumFlat
	case slope > 0:
		return MomentumPositive
	default:
		return MomentumNegative
	}
}

// Label is the discrete trading signal. The set is closed.
type Label string

const (
	LabelStrongBuy      Label = "STRONG BUY"
	LabelCautiousBuy    Label = "CAUTIOUS BUY"
	LabelStrongSell     Label = "STRONG SELL"
	LabelDivergenceUp   Label = "DIVERGENCE (Price Up, OI Weak)"
	LabelDivergenceDown Label = "DIVERGENCE (Price Down, OI Strong)"
	LabelWait           Label = "WAIT"
)

// Labels lists every label the classifier can produce.
var Labels = []Label{
	LabelStrongBuy,
	LabelCautiousBuy,
	LabelStrongSell,
	LabelDivergenceUp,
	LabelDivergenceDown,
	LabelWait,
}

// Color is the dashboard colour hint for the label.
func (l Label) Color() string {
	switch l {
	case LabelStrongBuy, LabelCautiousBuy:
		return "green"
	case LabelStrongSell:
		return "red"
	case LabelDivergenceUp, LabelDivergenceDown:
		return "orange"
	default:
		return "gray"
	}
}

// Actionable reports whether the label calls for attention (notifications).
func (l Label) Actionable() bool {
	return l == LabelStrongBuy || l == LabelStrongSell || l == LabelCautiousBuy
}

// Inputs are the classifier's categorical and ordinal inputs for one poll.
type Inputs struct {
	Trend    Trend
	Momentum Momentum
	Buildup  oi.Buildup
	RSI      float64
}

// Decision is the classifier output.
type Decision struct {
	Label    Label  `json:"signal"`
	Advisory string `json:"advisory,omitempty"`
}
