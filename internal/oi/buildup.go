package oi

// Buildup classifies the joint direction of price and OI since the last poll.
//
//	price up   + OI up   -> LONG_BUILDUP
//	price down + OI up   -> SHORT_BUILDUP
//	price up   + OI down -> SHORT_COVERING
//	price down + OI down -> LONG_UNWINDING
//
// Anything without movement on both axes is NEUTRAL.
type Buildup string

const (
	BuildupNeutral       Buildup = "NEUTRAL"
	BuildupLong          Buildup = "LONG_BUILDUP"
	BuildupShort         Buildup = "SHORT_BUILDUP"
	BuildupShortCovering Buildup = "SHORT_COVERING"
	BuildupLongUnwinding Buildup = "LONG_UNWINDING"
)

// ClassifyBuildup maps a price change and an OI change onto a Buildup.
func ClassifyBuildup(priceChange, oiChange float64) Buildup {
	priceUp := priceChange > 0
	priceDown := priceChange < 0
	oiUp := oiChange > 0
	oiDown := oiChange < 0

	switch {
	case priceUp && oiUp:
		return BuildupLong
	case priceDown && oiUp:
		return BuildupShort
	case priceUp && oiDown:
		return BuildupShortCovering
	case priceDown && oiDown:
		return BuildupLongUnwinding
	default:
		return BuildupNeutral
	}
}
