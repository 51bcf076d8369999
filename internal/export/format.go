// Package export renders the decision log for people: CSV files and
// display-scaled numbers.
package export

import (
	"github.com/shopspring/decimal"
)

var (
	crore = decimal.New(1, 7)
	lakh  = decimal.New(1, 5)
)

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Crore formats an OI quantity in crore (1e7), e.g. "1.25 Cr".
func Crore(v int64) string {
	return decimal.NewFromInt(v).Div(crore).StringFixed(2) + " Cr"
}

// Lakh formats an OI quantity in lakh (1e5), e.g. "-3.40 L".
func Lakh(v int64) string {
	return decimal.NewFromInt(v).Div(lakh).StringFixed(2) + " L"
}

// Fixed formats v with exactly places decimals.
func Fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
