// Package poller runs the fetch, update, classify and emit cycle on a
// fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/dhan"
	"github.com/dgnsrekt/oi-scalper/internal/export"
	"github.com/dgnsrekt/oi-scalper/internal/indicator"
	"github.com/dgnsrekt/oi-scalper/internal/oi"
	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

// ErrMarketClosed is returned by Cycle when the session gate is enforced
// and the exchange is not trading.
var ErrMarketClosed = errors.New("market closed")

// ChainSource yields the option chain for the current cycle.
type ChainSource interface {
	Resolve(ctx context.Context) (*oi.Snapshot, dhan.Resolution, error)
}

// IntradaySource yields the backfill price series.
type IntradaySource interface {
	FetchIntraday(ctx context.Context, req dhan.IntradayRequest) ([]session.PriceSample, error)
}

// Gate reports exchange session hours.
type Gate interface {
	IsOpen(t time.Time) bool
	SessionOpen(t time.Time) time.Time
}

// Options configures a Poller.
type Options struct {
	Interval       time.Duration
	EMASpan        int
	RSIPeriod      int
	Window         int
	Lookback       int
	GammaThreshold float64
	Backfill       bool
	Countdown      bool
	EnforceHours   bool
	Intraday       dhan.IntradayRequest
}

// Poller owns every mutation of the session state.
type Poller struct {
	chains     ChainSource
	intraday   IntradaySource
	gate       Gate
	state      *session.State
	classifier *signal.Classifier
	sinks      []Sink
	opts       Options
	now        func() time.Time
	refresh    chan struct{}
	logger     *zap.Logger
}

// New creates a poller. intraday and gate may be nil to disable backfill
// and the session gate.
func New(chains ChainSource, intraday IntradaySource, gate Gate, state *session.State,
	classifier *signal.Classifier, opts Options, logger *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 180 * time.Second
	}
	if opts.EMASpan < 1 {
		opts.EMASpan = indicator.DefaultEMASpan
	}
	if opts.RSIPeriod < 1 {
		opts.RSIPeriod = indicator.DefaultRSIPeriod
	}
	if opts.Window < 0 {
		opts.Window = oi.DefaultHalfWidth
	}
	if opts.Lookback < 1 {
		opts.Lookback = 3
	}
	if opts.GammaThreshold <= 0 {
		opts.GammaThreshold = signal.DefaultGammaThreshold
	}
	return &Poller{
		chains:     chains,
		intraday:   intraday,
		gate:       gate,
		state:      state,
		classifier: classifier,
		opts:       opts,
		now:        time.Now,
		refresh:    make(chan struct{}, 1),
		logger:     logger,
	}
}

// AddSink registers a sink. Not safe once Run has started.
func (p *Poller) AddSink(s Sink) {
	p.sinks = append(p.sinks, s)
}

// SetClock replaces the time source; the returned times should carry the
// exchange location.
func (p *Poller) SetClock(now func() time.Time) {
	p.now = now
}

// State returns the session the poller writes to.
func (p *Poller) State() *session.State {
	return p.state
}

// Cycle runs one poll. On fetch failure the session is left untouched,
// the "no data" status is published and the error is returned. A cycle in
// the same second as the last logged decision returns that decision without
// fetching or publishing.
func (p *Poller) Cycle(ctx context.Context) (*session.DecisionRecord, error) {
	now := p.now()

	if p.opts.EnforceHours && p.gate != nil && !p.gate.IsOpen(now) {
		p.logger.Debug("outside market hours, skipping cycle", zap.Time("at", now))
		p.publish(Event{Status: StatusMarketClosed, At: now, Err: ErrMarketClosed})
		return nil, ErrMarketClosed
	}

	if last, ok := p.state.LastPrice(); ok && !sameDay(last.Timestamp, now) {
		p.logger.Info("new trading day, resetting session",
			zap.Time("last_sample", last.Timestamp),
			zap.Int("decisions", len(p.state.Snapshot())))
		p.state.Reset()
	}

	// One row per second; a repeat leaves every series untouched.
	if p.state.LoggedAt(now) {
		p.logger.Debug("decision already logged for this second, skipping cycle", zap.Time("at", now))
		rec, _ := p.state.Latest()
		return &rec, nil
	}

	if p.opts.Backfill && p.intraday != nil && p.state.HistoryLen() == 0 && !p.state.Backfilled() {
		p.backfill(ctx, now)
	}

	snap, res, err := p.chains.Resolve(ctx)
	if err == nil && snap.Empty() {
		err = &dhan.FetchError{Op: "option chain", Kind: dhan.KindEmpty, Err: dhan.ErrEmptyData}
	}
	if err != nil {
		p.logger.Warn("no data this cycle",
			zap.String("kind", string(dhan.KindOf(err))),
			zap.Error(err))
		p.publish(Event{Status: StatusNoData, At: now, Err: err})
		return nil, fmt.Errorf("fetching option chain: %w", err)
	}

	rec := p.update(snap, res, now)

	p.state.AppendDecision(rec)

	p.logger.Info("signal",
		zap.String("signal", string(rec.Signal)),
		zap.Float64("spot", rec.Spot),
		zap.Float64("ema", rec.EMA),
		zap.Float64("rsi", rec.RSI),
		zap.Int64("net_change", rec.NetChange),
		zap.Int64("oi_slope", rec.OISlope),
		zap.String("momentum", string(rec.Momentum)),
		zap.String("buildup", string(rec.Buildup)),
		zap.String("suggestion", rec.Suggestion),
		zap.Float64("suggested_strike", rec.Strike),
		zap.String("expiry", rec.Expiry),
		zap.String("segment", res.Candidate.Segment))

	p.publish(Event{Status: StatusOK, At: now, Record: &rec})
	return &rec, nil
}

// update applies a successful snapshot to the session and classifies it.
func (p *Poller) update(snap *oi.Snapshot, res dhan.Resolution, now time.Time) session.DecisionRecord {
	spot := snap.LastPrice
	stats := oi.Aggregate(snap, p.opts.Window)
	walls := oi.GammaWalls(snap)

	// buildup compares against the previous poll, so read before appending
	buildup := oi.BuildupNeutral
	prevPrice, hasPrice := p.state.LastPrice()
	prevOI, hasOI := p.state.WindowOI()
	if hasPrice && hasOI {
		buildup = oi.ClassifyBuildup(spot-prevPrice.Value, float64(stats.TotalOI-prevOI))
	}

	p.state.AppendNetChange(stats.NetChange)
	var slope int64
	past, ready := p.state.NetChangeAgo(p.opts.Lookback)
	if ready {
		slope = stats.NetChange - past
	}

	p.state.AppendPrice(session.PriceSample{Timestamp: now, Value: spot})
	p.state.SetWindowOI(stats.TotalOI)

	prices := p.state.Prices()
	ema := export.Round(indicator.EMA(prices, p.opts.EMASpan), 2)
	rsi := export.Round(indicator.RSI(prices, p.opts.RSIPeriod), 2)
	suggestion, strike := oi.SuggestStrike(snap, spot)

	in := signal.Inputs{
		Trend:    signal.TrendOf(spot, ema),
		Momentum: signal.MomentumOf(slope, ready),
		Buildup:  buildup,
		RSI:      rsi,
	}
	decision := p.classifier.Classify(in)

	p.state.SetStatus(StatusOK, now)

	return session.DecisionRecord{
		Timestamp:     now,
		Expiry:        res.Expiry,
		Spot:          spot,
		EMA:           ema,
		RSI:           rsi,
		NetChange:     stats.NetChange,
		OISlope:       slope,
		Trend:         in.Trend,
		Momentum:      in.Momentum,
		Buildup:       buildup,
		Signal:        decision.Label,
		Advisory:      decision.Advisory,
		GammaAdvisory: signal.GammaAdvisory(spot, walls, p.opts.GammaThreshold),
		CallWall:      walls.CallWall,
		PutWall:       walls.PutWall,
		Suggestion:    suggestion,
		Strike:        strike,
	}
}

// backfill seeds the price history from today's intraday candles. A failure
// leaves the history empty and the next cycle proceeds live-only.
func (p *Poller) backfill(ctx context.Context, now time.Time) {
	req := p.opts.Intraday
	req.To = now
	if p.gate != nil {
		req.From = p.gate.SessionOpen(now)
	} else {
		req.From = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}

	samples, err := p.intraday.FetchIntraday(ctx, req)
	if err != nil {
		p.logger.Warn("intraday backfill failed, trend will build up live", zap.Error(err))
		return
	}

	p.state.SeedPrices(samples)
	p.state.MarkBackfilled()
	p.logger.Info("intraday backfill loaded",
		zap.Int("samples", len(samples)),
		zap.Int("retained", p.state.HistoryLen()))
}

func (p *Poller) publish(ev Event) {
	if ev.Status != StatusOK {
		p.state.SetStatus(ev.Status, ev.At)
	}
	for _, s := range p.sinks {
		s.Emit(ev)
	}
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
