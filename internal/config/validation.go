package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// InvalidField is one config key with the reason it was rejected.
type InvalidField struct {
	Key    string
	Reason string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	Missing  []string
	Invalid  []InvalidField
	Segments []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Invalid) > 0 || len(e.Segments) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.Missing) > 0 {
		sb.WriteString("\nMissing required values:\n")
		for _, m := range e.Missing {
			sb.WriteString(fmt.Sprintf("  - %s\n", m))
		}
	}

	if len(e.Invalid) > 0 {
		sb.WriteString("\nInvalid values:\n")
		for _, f := range e.Invalid {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", f.Key, f.Reason))
		}
	}

	if len(e.Segments) > 0 {
		sb.WriteString("\nInvalid exchange segments:\n")
		for _, s := range e.Segments {
			sb.WriteString(fmt.Sprintf("  - %s\n", s))
		}
		sb.WriteString(fmt.Sprintf("\nValid segments: %s\n", validSegmentsList()))
	}

	return sb.String()
}

func (e *ValidationErrors) invalid(key, format string, args ...any) {
	e.Invalid = append(e.Invalid, InvalidField{Key: key, Reason: fmt.Sprintf(format, args...)})
}

// Validate checks credentials, signal parameters and the candidate list.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if c.Dhan.ClientID == "" {
		errs.Missing = append(errs.Missing, "dhan.client_id (set DHAN_CLIENT_ID)")
	}
	if c.Dhan.AccessToken == "" {
		errs.Missing = append(errs.Missing, "dhan.access_token (set DHAN_ACCESS_TOKEN)")
	}

	validateSignal(errs, c.Signal)

	if c.Session.MaxHistory < c.Signal.RSIPeriod {
		errs.invalid("session.max_history", "must be >= signal.rsi_period (%d)", c.Signal.RSIPeriod)
	}
	if c.Poll.IntervalSec < 1 {
		errs.invalid("poll.interval_sec", "must be >= 1")
	}
	if c.Dhan.RatePerSecond <= 0 {
		errs.invalid("dhan.rate_per_second", "must be > 0")
	}
	if !ValidInstrumentTypes[c.Instrument.InstrumentType] {
		errs.invalid("instrument.instrument_type", "unknown type %q", c.Instrument.InstrumentType)
	}

	if c.Instrument.ExpiryWeekday != "" {
		if _, ok := c.Instrument.Weekday(); !ok {
			errs.invalid("instrument.expiry_weekday", "unknown weekday %q", c.Instrument.ExpiryWeekday)
		}
	}
	if c.Instrument.ExpiryCutoffHour < 0 || c.Instrument.ExpiryCutoffHour > 23 {
		errs.invalid("instrument.expiry_cutoff_hour", "must be within 0..23")
	}

	validateCandidates(errs, c.Instrument.Candidates)
	validateMarket(errs, c.Market)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateSignal(errs *ValidationErrors, s SignalConfig) {
	if !slices.Contains(ValidEMASpans, s.EMASpan) {
		errs.invalid("signal.ema_span", "must be one of %v", ValidEMASpans)
	}
	if !slices.Contains(ValidWindows, s.Window) {
		errs.invalid("signal.window", "must be one of %v", ValidWindows)
	}
	if s.RSIPeriod < 2 {
		errs.invalid("signal.rsi_period", "must be >= 2")
	}
	if s.Lookback < 1 {
		errs.invalid("signal.lookback", "must be >= 1")
	}
	if s.BuyRSI <= s.SellRSI {
		errs.invalid("signal.buy_rsi", "must be above signal.sell_rsi")
	}
	if s.GammaThreshold <= 0 {
		errs.invalid("signal.gamma_threshold", "must be > 0")
	}
}

func validateCandidates(errs *ValidationErrors, candidates []Candidate) {
	if len(candidates) == 0 {
		errs.Missing = append(errs.Missing, "instrument.candidates")
		return
	}
	for i, cand := range candidates {
		if cand.SecurityID <= 0 {
			errs.invalid(fmt.Sprintf("instrument.candidates[%d].security_id", i), "must be > 0")
		}
		if !ValidSegments[cand.Segment] {
			errs.Segments = append(errs.Segments, fmt.Sprintf("candidates[%d]: %q", i, cand.Segment))
		}
	}
}

func validateMarket(errs *ValidationErrors, m MarketConfig) {
	if _, err := time.LoadLocation(m.Timezone); err != nil {
		errs.invalid("market.timezone", "%v", err)
	}
	open, errOpen := time.Parse("15:04", m.Open)
	if errOpen != nil {
		errs.invalid("market.open", "expected HH:MM")
	}
	closeAt, errClose := time.Parse("15:04", m.Close)
	if errClose != nil {
		errs.invalid("market.close", "expected HH:MM")
	}
	if errOpen == nil && errClose == nil && !open.Before(closeAt) {
		errs.invalid("market.close", "must be after market.open")
	}
}

func validSegmentsList() string {
	segments := make([]string, 0, len(ValidSegments))
	for s := range ValidSegments {
		segments = append(segments, s)
	}
	sort.Strings(segments)
	return strings.Join(segments, ", ")
}
