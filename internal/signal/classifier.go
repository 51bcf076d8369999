// Package signal turns trend, OI momentum, buildup and RSI into one discrete
// trading label, plus an independent gamma-wall proximity advisory.
package signal

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/oi-scalper/internal/oi"
)

const (
	DefaultBuyRSI         = 55.0
	DefaultSellRSI        = 45.0
	DefaultGammaThreshold = 20.0
)

// Classifier holds the thresholds for the decision table.
// With UseRSI false the RSI axis is ignored (two-input scheme).
type Classifier struct {
	UseRSI  bool
	BuyRSI  float64
	SellRSI float64
}

// NewClassifier returns a classifier with the default RSI thresholds.
func NewClassifier(useRSI bool) *Classifier {
	return &Classifier{
		UseRSI:  useRSI,
		BuyRSI:  DefaultBuyRSI,
		SellRSI: DefaultSellRSI,
	}
}

// Classify applies the decision table. The first matching rule wins and any
// combination not covered falls through to WAIT.
func (c *Classifier) Classify(in Inputs) Decision {
	bullish := in.Trend == TrendBullish
	bearish := in.Trend == TrendBearish

	switch {
	case bullish && (in.Momentum == MomentumPositive || in.Buildup == oi.BuildupLong) && c.rsiAbove(in.RSI):
		return Decision{Label: LabelStrongBuy, Advisory: "price above EMA with OI support"}

	case bullish && in.Buildup == oi.BuildupShortCovering:
		return Decision{Label: LabelCautiousBuy, Advisory: "short covering, not fresh buying"}

	case bearish && (in.Momentum == MomentumNegative || in.Buildup == oi.BuildupShort) && c.rsiBelow(in.RSI):
		return Decision{Label: LabelStrongSell, Advisory: "price below EMA with OI pressure"}

	case bullish && in.Momentum == MomentumNegative:
		return Decision{Label: LabelDivergenceUp, Advisory: "price up but OI momentum weak"}

	case bearish && in.Momentum == MomentumPositive:
		return Decision{Label: LabelDivergenceDown, Advisory: "price down but OI momentum strong"}
	}

	if in.Momentum == MomentumFlat {
		return Decision{Label: LabelWait, Advisory: "building OI history"}
	}
	return Decision{Label: LabelWait}
}

func (c *Classifier) rsiAbove(rsi float64) bool {
	return !c.UseRSI || rsi > c.BuyRSI
}

func (c *Classifier) rsiBelow(rsi float64) bool {
	return !c.UseRSI || rsi < c.SellRSI
}

// GammaAdvisory reports spot proximity to the call and put walls. When both
// are within threshold the put-wall message is returned. Zero walls are
// treated as missing. Returns "" when spot is clear of both.
func GammaAdvisory(spot float64, walls oi.GammaLevels, threshold float64) string {
	msg := ""
	if walls.CallWall > 0 && math.Abs(spot-walls.CallWall) < threshold {
		msg = fmt.Sprintf("near call wall %.0f (resistance)", walls.CallWall)
	}
	if walls.PutWall > 0 && math.Abs(spot-walls.PutWall) < threshold {
		msg = fmt.Sprintf("near put wall %.0f (support)", walls.PutWall)
	}
	return msg
}
