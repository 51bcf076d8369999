package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Dhan: DhanConfig{ClientID: "1", AccessToken: "t", RatePerSecond: 0.33},
		Instrument: InstrumentConfig{
			InstrumentType: "INDEX",
			Candidates:     []Candidate{{SecurityID: 13, Segment: "IDX_I"}},
		},
		Signal: SignalConfig{
			EMASpan: 9, RSIPeriod: 14, BuyRSI: 55, SellRSI: 45,
			Window: 5, Lookback: 3, GammaThreshold: 20,
		},
		Session: SessionConfig{MaxHistory: 500},
		Poll:    PollConfig{IntervalSec: 180},
		Market:  MarketConfig{Timezone: "Asia/Kolkata", Open: "09:15", Close: "15:30"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("expected no error for valid config, got: %v", err)
	}
}

func TestValidate_InvalidSegment(t *testing.T) {
	cfg := validConfig()
	cfg.Instrument.Candidates = append(cfg.Instrument.Candidates, Candidate{SecurityID: 13, Segment: "NSE_IDX"})

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid segment")
	}
	if !strings.Contains(err.Error(), "NSE_IDX") {
		t.Errorf("error should mention invalid segment, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Valid segments:") {
		t.Errorf("error should list valid segments, got: %v", err)
	}
}

func TestValidate_SignalParameters(t *testing.T) {
	cfg := validConfig()
	cfg.Signal.EMASpan = 21
	cfg.Signal.Window = 7
	cfg.Signal.BuyRSI = 40

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid signal parameters")
	}

	errStr := err.Error()
	for _, key := range []string{"signal.ema_span", "signal.window", "signal.buy_rsi"} {
		if !strings.Contains(errStr, key) {
			t.Errorf("error should mention %s, got: %v", key, err)
		}
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Dhan.ClientID = ""
	cfg.Dhan.AccessToken = ""
	cfg.Market.Open = "16:00"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for multiple issues")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "DHAN_CLIENT_ID") || !strings.Contains(errStr, "DHAN_ACCESS_TOKEN") {
		t.Errorf("error should list all missing credentials, got: %v", err)
	}
	if !strings.Contains(errStr, "market.close") {
		t.Errorf("error should reject close before open, got: %v", err)
	}
}

func TestValidate_ExpiryWeekday(t *testing.T) {
	cfg := validConfig()
	cfg.Instrument.ExpiryWeekday = "Tuesday"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Tuesday to be accepted, got: %v", err)
	}
	if d, ok := cfg.Instrument.Weekday(); !ok || d.String() != "Tuesday" {
		t.Errorf("expected Tuesday, got %v (ok=%v)", d, ok)
	}

	cfg.Instrument.ExpiryWeekday = "Tuesdy"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "instrument.expiry_weekday") {
		t.Errorf("expected weekday error, got: %v", err)
	}
}
