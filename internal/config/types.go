package config

// ValidSegments are the DhanHQ exchange segment identifiers accepted for
// expiry discovery and option chain requests.
var ValidSegments = map[string]bool{
	"IDX_I":    true,
	"NSE_EQ":   true,
	"NSE_FNO":  true,
	"BSE_EQ":   true,
	"BSE_FNO":  true,
	"MCX_COMM": true,
}

// ValidInstrumentTypes are accepted for the intraday chart request.
var ValidInstrumentTypes = map[string]bool{
	"INDEX":  true,
	"EQUITY": true,
	"FUTIDX": true,
	"OPTIDX": true,
}

// ValidEMASpans lists the EMA spans the dashboard variants use.
var ValidEMASpans = []int{5, 9}

// ValidWindows lists the ATM half-widths the dashboard variants use.
var ValidWindows = []int{3, 5}
