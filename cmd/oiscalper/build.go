package main

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/oi-scalper/internal/config"
	"github.com/dgnsrekt/oi-scalper/internal/dhan"
	"github.com/dgnsrekt/oi-scalper/internal/market"
	"github.com/dgnsrekt/oi-scalper/internal/poller"
	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

// pipeline is everything a poll cycle needs, built from config.
type pipeline struct {
	hours    *market.Hours
	client   *dhan.HTTPClient
	resolver *dhan.Resolver
	state    *session.State
	poller   *poller.Poller
}

func buildPipeline(cfg *config.Config) (*pipeline, error) {
	hours, err := market.NewHours(cfg.Market.Timezone, cfg.Market.Open, cfg.Market.Close)
	if err != nil {
		return nil, fmt.Errorf("market hours: %w", err)
	}

	client := dhan.NewClient(dhan.ClientConfig{
		BaseURL:       cfg.Dhan.BaseURL,
		ClientID:      cfg.Dhan.ClientID,
		AccessToken:   cfg.Dhan.AccessToken,
		Timeout:       time.Duration(cfg.Dhan.TimeoutSec) * time.Second,
		RetryCount:    cfg.Dhan.RetryCount,
		RetryDelay:    time.Duration(cfg.Dhan.RetryDelay) * time.Second,
		RatePerSecond: cfg.Dhan.RatePerSecond,
		Location:      hours.Location(),
	}, logger)

	candidates := make([]dhan.Candidate, 0, len(cfg.Instrument.Candidates))
	for _, c := range cfg.Instrument.Candidates {
		candidates = append(candidates, dhan.Candidate{SecurityID: c.SecurityID, Segment: c.Segment})
	}

	resolver := dhan.NewResolver(client, candidates, hours.Now, logger)
	if weekday, ok := cfg.Instrument.Weekday(); ok {
		cutoff := cfg.Instrument.ExpiryCutoffHour
		resolver.Fallback = func(now time.Time) string {
			return dhan.WeeklyExpiry(now, weekday, cutoff)
		}
	}

	classifier := signal.NewClassifier(cfg.Signal.UseRSI)
	classifier.BuyRSI = cfg.Signal.BuyRSI
	classifier.SellRSI = cfg.Signal.SellRSI

	state := session.New(cfg.Session.MaxHistory)

	p := poller.New(resolver, client, hours, state, classifier, poller.Options{
		Interval:       cfg.PollInterval(),
		EMASpan:        cfg.Signal.EMASpan,
		RSIPeriod:      cfg.Signal.RSIPeriod,
		Window:         cfg.Signal.Window,
		Lookback:       cfg.Signal.Lookback,
		GammaThreshold: cfg.Signal.GammaThreshold,
		Backfill:       cfg.Poll.Backfill,
		Countdown:      cfg.Poll.Countdown,
		EnforceHours:   cfg.Market.EnforceHours,
		Intraday: dhan.IntradayRequest{
			SecurityID:     cfg.Instrument.SecurityID,
			Segment:        cfg.Instrument.Segment,
			InstrumentType: cfg.Instrument.InstrumentType,
		},
	}, logger)
	p.SetClock(hours.Now)

	return &pipeline{
		hours:    hours,
		client:   client,
		resolver: resolver,
		state:    state,
		poller:   p,
	}, nil
}
