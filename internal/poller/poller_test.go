package poller

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/dhan"
	"github.com/dgnsrekt/oi-scalper/internal/indicator"
	"github.com/dgnsrekt/oi-scalper/internal/oi"
	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

// fakeChains serves one snapshot per Resolve call, then repeats the last.
type fakeChains struct {
	mu    sync.Mutex
	snaps []*oi.Snapshot
	err   error
	calls int
}

func (f *fakeChains) Resolve(ctx context.Context) (*oi.Snapshot, dhan.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, dhan.Resolution{}, f.err
	}
	i := min(f.calls-1, len(f.snaps)-1)
	return f.snaps[i], dhan.Resolution{
		Candidate: dhan.Candidate{SecurityID: 13, Segment: "IDX_I"},
		Expiry:    "2025-11-18",
	}, nil
}

type fakeIntraday struct {
	samples []session.PriceSample
	err     error
	req     dhan.IntradayRequest
}

func (f *fakeIntraday) FetchIntraday(ctx context.Context, req dhan.IntradayRequest) ([]session.PriceSample, error) {
	f.req = req
	return f.samples, f.err
}

type fakeGate struct{ open bool }

func (g fakeGate) IsOpen(time.Time) bool { return g.open }
func (g fakeGate) SessionOpen(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 9, 15, 0, 0, t.Location())
}

// chainAt builds a one-strike chain whose windowed net change is net.
func chainAt(spot float64, net int64) *oi.Snapshot {
	const base = 1000
	return oi.NewSnapshot("2025-11-18", spot, []oi.Strike{{
		Price: spot,
		Call:  &oi.Side{OI: base, PreviousOI: base},
		Put:   &oi.Side{OI: base + net, PreviousOI: base},
	}})
}

// steppingClock advances three minutes per call.
func steppingClock() func() time.Time {
	t := time.Date(2025, 11, 18, 9, 30, 0, 0, time.FixedZone("IST", 19800))
	return func() time.Time {
		t = t.Add(3 * time.Minute)
		return t
	}
}

func newTestPoller(chains ChainSource, opts Options, useRSI bool) *Poller {
	p := New(chains, nil, nil, session.New(session.DefaultMaxHistory), signal.NewClassifier(useRSI), opts, zap.NewNop())
	p.SetClock(steppingClock())
	return p
}

func TestCycle_EndToEndStrongBuy(t *testing.T) {
	nets := []int64{-10, -10, -10, -10, -10, -10, -20, -30, 40}
	var snaps []*oi.Snapshot
	for i, n := range nets {
		snaps = append(snaps, chainAt(100+float64(i), n))
	}

	// RSI period below the series length so it is computed, not defaulted
	p := newTestPoller(&fakeChains{snaps: snaps}, Options{EMASpan: 9, RSIPeriod: 5, Window: 5, Lookback: 3}, true)

	var rec *session.DecisionRecord
	var err error
	for range nets {
		rec, err = p.Cycle(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if rec.Spot != 108 {
		t.Fatalf("expected last spot 108, got %v", rec.Spot)
	}
	if rec.EMA >= 108 {
		t.Errorf("expected EMA below the last price, got %v", rec.EMA)
	}
	if rec.Trend != signal.TrendBullish {
		t.Errorf("expected BULLISH, got %s", rec.Trend)
	}
	if rec.OISlope != 50 {
		t.Errorf("expected slope 40-(-10)=50, got %d", rec.OISlope)
	}
	if rec.Momentum != signal.MomentumPositive {
		t.Errorf("expected POSITIVE, got %s", rec.Momentum)
	}
	if rec.RSI <= 55 {
		t.Errorf("expected RSI above 55 on a rising series, got %v", rec.RSI)
	}
	if rec.Signal != signal.LabelStrongBuy {
		t.Errorf("expected STRONG BUY, got %s", rec.Signal)
	}
	if got := len(p.State().Snapshot()); got != len(nets) {
		t.Errorf("expected %d decisions, got %d", len(nets), got)
	}
}

func TestCycle_RoundsIndicatorsAndSuggestsStrike(t *testing.T) {
	second := oi.NewSnapshot("2025-11-18", 101.456, []oi.Strike{
		{Price: 100, Call: &oi.Side{OI: 90, PreviousOI: 100, Delta: 0.7}, Put: &oi.Side{OI: 110, PreviousOI: 100, Delta: -0.3}},
		{Price: 101, Call: &oi.Side{OI: 130, PreviousOI: 100, Delta: 0.55}, Put: &oi.Side{OI: 70, PreviousOI: 100, Delta: -0.45}},
		{Price: 102, Call: &oi.Side{OI: 100, PreviousOI: 100, Delta: 0.3}, Put: &oi.Side{OI: 100, PreviousOI: 100, Delta: -0.7}},
	})
	p := newTestPoller(&fakeChains{snaps: []*oi.Snapshot{chainAt(100.123, 0), second}}, Options{EMASpan: 9, Window: 5}, true)

	first, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Suggestion != oi.SuggestNone || first.Strike != 0 {
		t.Errorf("expected no trade without deltas, got %s %v", first.Suggestion, first.Strike)
	}

	rec, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := math.Round(indicator.EMA([]float64{100.123, 101.456}, 9)*100) / 100
	if rec.EMA != want {
		t.Errorf("expected EMA rounded to %v, got %v", want, rec.EMA)
	}
	if rec.RSI != math.Round(rec.RSI*100)/100 {
		t.Errorf("expected RSI rounded to 2 places, got %v", rec.RSI)
	}
	if rec.Suggestion != oi.SuggestCall || rec.Strike != 101 {
		t.Errorf("expected BUY CALL 101, got %s %v", rec.Suggestion, rec.Strike)
	}
}

func TestCycle_EndToEndTwoInputScheme(t *testing.T) {
	nets := []int64{-10, -10, -10, -10, -10, -10, -20, -30, 40}
	var snaps []*oi.Snapshot
	for i, n := range nets {
		snaps = append(snaps, chainAt(100+float64(i), n))
	}

	// 9 samples with period 14 leaves RSI at its neutral default
	p := newTestPoller(&fakeChains{snaps: snaps}, Options{EMASpan: 9, RSIPeriod: 14, Window: 5, Lookback: 3}, false)

	var rec *session.DecisionRecord
	for range nets {
		rec, _ = p.Cycle(context.Background())
	}

	if rec.RSI != 50 {
		t.Errorf("expected neutral RSI during warm-up, got %v", rec.RSI)
	}
	if rec.Signal != signal.LabelStrongBuy {
		t.Errorf("expected STRONG BUY without the RSI filter, got %s", rec.Signal)
	}
}

func TestCycle_FlatMomentumWaits(t *testing.T) {
	p := newTestPoller(&fakeChains{snaps: []*oi.Snapshot{chainAt(100, 10)}}, Options{Lookback: 3}, true)

	rec, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Momentum != signal.MomentumFlat {
		t.Errorf("expected FLAT with no slope history, got %s", rec.Momentum)
	}
	if rec.Buildup != oi.BuildupNeutral {
		t.Errorf("expected NEUTRAL buildup on the first poll, got %s", rec.Buildup)
	}
	if rec.Signal != signal.LabelWait {
		t.Errorf("expected WAIT, got %s", rec.Signal)
	}
}

func TestCycle_BuildupAgainstPreviousPoll(t *testing.T) {
	// price up, window OI up
	p := newTestPoller(&fakeChains{snaps: []*oi.Snapshot{chainAt(100, 10), chainAt(101, 30)}}, Options{}, true)

	_, _ = p.Cycle(context.Background())
	rec, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Buildup != oi.BuildupLong {
		t.Errorf("expected LONG_BUILDUP, got %s", rec.Buildup)
	}
}

func TestCycle_FetchFailureLeavesStateUntouched(t *testing.T) {
	fetchErr := &dhan.FetchError{Op: "option chain", Kind: dhan.KindTransport, Err: errors.New("connection refused")}
	p := newTestPoller(&fakeChains{err: fetchErr}, Options{}, true)

	var events []Event
	p.AddSink(SinkFunc(func(ev Event) { events = append(events, ev) }))

	rec, err := p.Cycle(context.Background())
	if err == nil || rec != nil {
		t.Fatalf("expected failure, got rec=%v err=%v", rec, err)
	}
	if dhan.KindOf(err) != dhan.KindTransport {
		t.Errorf("expected transport kind preserved, got %v", err)
	}

	state := p.State()
	if state.HistoryLen() != 0 || len(state.Snapshot()) != 0 {
		t.Error("expected no state mutation on fetch failure")
	}
	if _, ok := state.NetChangeAgo(0); ok {
		t.Error("expected no net change recorded on fetch failure")
	}
	if status, _ := state.Status(); status != StatusNoData {
		t.Errorf("expected status %q, got %q", StatusNoData, status)
	}
	if len(events) != 1 || events[0].Status != StatusNoData || events[0].Record != nil {
		t.Errorf("expected one no-data event, got %+v", events)
	}
}

func TestCycle_EmptySnapshotIsNoData(t *testing.T) {
	empty := oi.NewSnapshot("2025-11-18", 0, nil)
	p := newTestPoller(&fakeChains{snaps: []*oi.Snapshot{empty}}, Options{}, true)

	_, err := p.Cycle(context.Background())
	if !errors.Is(err, dhan.ErrEmptyData) {
		t.Errorf("expected ErrEmptyData, got %v", err)
	}
	if p.State().HistoryLen() != 0 {
		t.Error("expected empty history")
	}
}

func TestCycle_Backfill(t *testing.T) {
	loc := time.FixedZone("IST", 19800)
	var samples []session.PriceSample
	for i := 0; i < 20; i++ {
		samples = append(samples, session.PriceSample{
			Timestamp: time.Date(2025, 11, 18, 9, 15+i, 0, 0, loc),
			Value:     100 + float64(i),
		})
	}
	intraday := &fakeIntraday{samples: samples}

	p := New(&fakeChains{snaps: []*oi.Snapshot{chainAt(120, 5)}}, intraday, fakeGate{open: true},
		session.New(session.DefaultMaxHistory), signal.NewClassifier(true),
		Options{Backfill: true, Intraday: dhan.IntradayRequest{SecurityID: 13, Segment: "IDX_I", InstrumentType: "INDEX"}},
		zap.NewNop())
	p.SetClock(steppingClock())

	if _, err := p.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := p.State().HistoryLen(); got != 21 {
		t.Errorf("expected 20 backfilled + 1 live sample, got %d", got)
	}
	if !p.State().Backfilled() {
		t.Error("expected backfill flag set")
	}
	if intraday.req.From.Hour() != 9 || intraday.req.From.Minute() != 15 {
		t.Errorf("expected backfill from session open, got %v", intraday.req.From)
	}

	// a second cycle must not backfill again
	intraday.samples = nil
	intraday.err = errors.New("should not be called")
	if _, err := p.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.State().HistoryLen(); got != 22 {
		t.Errorf("expected 22 samples, got %d", got)
	}
}

func TestCycle_BackfillFailureContinuesLive(t *testing.T) {
	intraday := &fakeIntraday{err: &dhan.FetchError{Kind: dhan.KindEmpty, Err: dhan.ErrEmptyData}}
	p := New(&fakeChains{snaps: []*oi.Snapshot{chainAt(100, 5)}}, intraday, nil,
		session.New(session.DefaultMaxHistory), signal.NewClassifier(true), Options{Backfill: true}, zap.NewNop())
	p.SetClock(steppingClock())

	if _, err := p.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State().Backfilled() {
		t.Error("expected backfill flag to stay unset")
	}
	if p.State().HistoryLen() != 1 {
		t.Errorf("expected live sample only, got %d", p.State().HistoryLen())
	}
}

func TestCycle_MarketClosed(t *testing.T) {
	chains := &fakeChains{snaps: []*oi.Snapshot{chainAt(100, 5)}}
	p := New(chains, nil, fakeGate{open: false}, session.New(10), signal.NewClassifier(true),
		Options{EnforceHours: true}, zap.NewNop())

	_, err := p.Cycle(context.Background())
	if !errors.Is(err, ErrMarketClosed) {
		t.Errorf("expected ErrMarketClosed, got %v", err)
	}
	if chains.calls != 0 {
		t.Errorf("expected no fetch outside market hours, got %d", chains.calls)
	}
	if status, _ := p.State().Status(); status != StatusMarketClosed {
		t.Errorf("expected status %q, got %q", StatusMarketClosed, status)
	}
}

func TestCycle_SameSecondDeduplicated(t *testing.T) {
	chains := &fakeChains{snaps: []*oi.Snapshot{chainAt(100, 5), chainAt(101, 9)}}
	p := newTestPoller(chains, Options{}, true)
	fixed := time.Date(2025, 11, 18, 10, 0, 0, 0, time.UTC)
	times := []time.Time{fixed, fixed.Add(100 * time.Millisecond), fixed.Add(3 * time.Minute)}
	i := 0
	p.SetClock(func() time.Time {
		at := times[i]
		i++
		return at
	})

	var records int
	p.AddSink(SinkFunc(func(ev Event) {
		if ev.Record != nil {
			records++
		}
	}))

	first, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repeat, err := p.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repeat.Timestamp.Equal(first.Timestamp) {
		t.Errorf("expected the logged decision back, got %v", repeat.Timestamp)
	}

	if got := len(p.State().Snapshot()); got != 1 {
		t.Errorf("expected one decision for the same second, got %d", got)
	}
	if got := p.State().HistoryLen(); got != 1 {
		t.Errorf("expected one price sample, got %d", got)
	}
	if records != 1 {
		t.Errorf("expected one published record, got %d", records)
	}
	if chains.calls != 1 {
		t.Errorf("expected the repeat cycle to skip the fetch, got %d calls", chains.calls)
	}

	if _, err := p.Cycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.State().HistoryLen(); got != 2 || records != 2 {
		t.Errorf("expected the next cycle to proceed, got %d samples and %d records", got, records)
	}
}

func TestCycle_NewDayResetsSession(t *testing.T) {
	p := newTestPoller(&fakeChains{snaps: []*oi.Snapshot{chainAt(100, 5), chainAt(101, 6), chainAt(102, 7)}}, Options{}, true)
	ist := time.FixedZone("IST", 19800)
	times := []time.Time{
		time.Date(2025, 11, 17, 15, 0, 0, 0, ist),
		time.Date(2025, 11, 17, 15, 3, 0, 0, ist),
		time.Date(2025, 11, 18, 9, 18, 0, 0, ist),
	}
	i := 0
	p.SetClock(func() time.Time {
		at := times[i]
		i++
		return at
	})

	for range times {
		if _, err := p.Cycle(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := p.State().HistoryLen(); got != 1 {
		t.Errorf("expected history to restart on the new day, got %d samples", got)
	}
	if got := len(p.State().Snapshot()); got != 1 {
		t.Errorf("expected one decision for the new day, got %d", got)
	}
}

func TestRefreshCoalesces(t *testing.T) {
	p := newTestPoller(&fakeChains{}, Options{}, true)

	if !p.Refresh() {
		t.Error("expected first refresh to be queued")
	}
	if p.Refresh() {
		t.Error("expected second refresh to coalesce")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	p := newTestPoller(&fakeChains{snaps: []*oi.Snapshot{chainAt(100, 5)}}, Options{Interval: 5 * time.Millisecond}, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	cycles := 0
	p.AddSink(SinkFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		cycles++
		if cycles == 3 {
			cancel()
		}
	}))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if got := len(p.State().Snapshot()); got < 3 {
		t.Errorf("expected at least 3 decisions, got %d", got)
	}
}

func TestRunHonoursRefresh(t *testing.T) {
	p := newTestPoller(&fakeChains{snaps: []*oi.Snapshot{chainAt(100, 5)}}, Options{Interval: time.Hour}, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 4)
	p.AddSink(SinkFunc(func(ev Event) { events <- ev }))

	go func() { _ = p.Run(ctx) }()

	<-events
	p.Refresh()

	select {
	case ev := <-events:
		if ev.Status != StatusOK {
			t.Errorf("expected ok status, got %q", ev.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not trigger a cycle")
	}
}
