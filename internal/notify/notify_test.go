package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/oi"
	"github.com/dgnsrekt/oi-scalper/internal/poller"
	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

func testRecord(label signal.Label) session.DecisionRecord {
	return session.DecisionRecord{
		Timestamp: time.Date(2025, 11, 18, 10, 15, 0, 0, time.UTC),
		Spot:      25642.8,
		EMA:       25630.12,
		RSI:       61.4,
		NetChange: 12500000,
		OISlope:   340000,
		Buildup:   oi.BuildupLong,
		Signal:    label,
		Advisory:  "price above EMA with OI support",
	}
}

func TestClientSendSignal(t *testing.T) {
	var gotPath, gotTitle, gotPriority, gotTags, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotTags = r.Header.Get("Tags")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &Config{Enabled: true, Server: server.URL + "/", Topic: "scalper", Priority: "high", Tags: "chart", Token: "tk"}
	client := NewClient(cfg, "NIFTY", zap.NewNop())

	if err := client.SendSignal(context.Background(), testRecord(signal.LabelStrongBuy), signal.LabelWait); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/scalper" {
		t.Errorf("expected /scalper, got %s", gotPath)
	}
	if gotTitle != "NIFTY STRONG BUY @ 25642.80" {
		t.Errorf("unexpected title %q", gotTitle)
	}
	if gotPriority != "high" || gotTags != "chart,green_circle" || gotAuth != "Bearer tk" {
		t.Errorf("unexpected headers priority=%q tags=%q auth=%q", gotPriority, gotTags, gotAuth)
	}
	for _, want := range []string{"Was: WAIT", "Net OI change: 1.25 Cr", "OI slope: 3.40 L", "10:15:00"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, gotBody)
		}
	}
}

func TestClientCautiousBuyUsesDefaultPriority(t *testing.T) {
	var gotPriority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPriority = r.Header.Get("Priority")
	}))
	defer server.Close()

	client := NewClient(&Config{Enabled: true, Server: server.URL, Topic: "t", Priority: "urgent"}, "NIFTY", zap.NewNop())
	if err := client.SendSignal(context.Background(), testRecord(signal.LabelCautiousBuy), ""); err != nil {
		t.Fatal(err)
	}
	if gotPriority != "default" {
		t.Errorf("expected default priority, got %q", gotPriority)
	}

	client = NewClient(&Config{Enabled: true, Server: server.URL, Topic: "t", Priority: "urgent", CautionPriority: "low"}, "NIFTY", zap.NewNop())
	if err := client.SendSignal(context.Background(), testRecord(signal.LabelCautiousBuy), ""); err != nil {
		t.Fatal(err)
	}
	if gotPriority != "low" {
		t.Errorf("expected configured caution priority, got %q", gotPriority)
	}
}

func TestClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(&Config{Enabled: true, Server: server.URL, Topic: "t", Priority: "high"}, "NIFTY", zap.NewNop())
	if err := client.SendSignal(context.Background(), testRecord(signal.LabelStrongSell), ""); err == nil {
		t.Error("expected error for 403")
	}
}

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	if _, ok := New(&Config{}, "NIFTY", zap.NewNop()).(*NoopNotifier); !ok {
		t.Error("expected NoopNotifier when disabled")
	}
	if _, ok := New(&Config{Enabled: true, Topic: "t"}, "NIFTY", zap.NewNop()).(*Client); !ok {
		t.Error("expected Client when enabled")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled", Config{}, false},
		{"missing topic", Config{Enabled: true, Priority: "high"}, true},
		{"bad priority", Config{Enabled: true, Topic: "t", Priority: "loud"}, true},
		{"bad caution priority", Config{Enabled: true, Topic: "t", Priority: "high", CautionPriority: "soft"}, true},
		{"valid", Config{Enabled: true, Topic: "t", Priority: "urgent"}, false},
		{"valid with caution priority", Config{Enabled: true, Topic: "t", Priority: "urgent", CautionPriority: "low"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OISCALPER_NTFY_ENABLED", "true")
	t.Setenv("OISCALPER_NTFY_TOPIC", "nifty-alerts")
	t.Setenv("OISCALPER_NTFY_CAUTION_PRIORITY", "low")

	cfg := LoadConfig()
	if !cfg.Enabled || cfg.Topic != "nifty-alerts" || cfg.CautionPriority != "low" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.Server != "https://ntfy.sh" || cfg.Priority != "high" || cfg.Tags != "nifty" {
		t.Errorf("expected defaults, got server=%s priority=%s tags=%s", cfg.Server, cfg.Priority, cfg.Tags)
	}
}

func TestLoadConfigFallsBackToPlainNtfyVars(t *testing.T) {
	t.Setenv("NTFY_TOPIC", "shared")
	t.Setenv("NTFY_PRIORITY", "urgent")
	t.Setenv("OISCALPER_NTFY_PRIORITY", "min")

	cfg := LoadConfig()
	if cfg.Topic != "shared" {
		t.Errorf("expected fallback topic, got %q", cfg.Topic)
	}
	if cfg.Priority != "min" {
		t.Errorf("expected prefixed variable to win, got %q", cfg.Priority)
	}
}

type mockNotifier struct {
	mu    sync.Mutex
	delay time.Duration
	sent  []signal.Label
	prevs []signal.Label
}

func (m *mockNotifier) SendSignal(_ context.Context, rec session.DecisionRecord, previous signal.Label) error {
	if m.delay > 0 && len(m.snapshot()) == 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, rec.Signal)
	m.prevs = append(m.prevs, previous)
	return nil
}

func TestSignalSinkSendsOnActionableChange(t *testing.T) {
	mock := &mockNotifier{}
	sink := NewSignalSink(mock, zap.NewNop())

	emit := func(label signal.Label) {
		rec := testRecord(label)
		sink.Emit(poller.Event{Status: poller.StatusOK, Record: &rec})
	}

	emit(signal.LabelWait)
	emit(signal.LabelStrongBuy)
	emit(signal.LabelStrongBuy)
	sink.Emit(poller.Event{Status: poller.StatusNoData})
	emit(signal.LabelDivergenceUp)
	emit(signal.LabelStrongSell)
	sink.Close()

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.sent) != 2 {
		t.Fatalf("expected 2 notifications, got %v", mock.sent)
	}
	if mock.sent[0] != signal.LabelStrongBuy || mock.prevs[0] != signal.LabelWait {
		t.Errorf("unexpected first notification %s (was %s)", mock.sent[0], mock.prevs[0])
	}
	if mock.sent[1] != signal.LabelStrongSell || mock.prevs[1] != signal.LabelDivergenceUp {
		t.Errorf("unexpected second notification %s (was %s)", mock.sent[1], mock.prevs[1])
	}
}

func (m *mockNotifier) snapshot() []signal.Label {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]signal.Label(nil), m.sent...)
}

func TestSignalSinkKeepsOrderWhenFirstSendIsSlow(t *testing.T) {
	mock := &mockNotifier{delay: 50 * time.Millisecond}
	sink := NewSignalSink(mock, zap.NewNop())

	for _, label := range []signal.Label{signal.LabelStrongBuy, signal.LabelWait, signal.LabelStrongSell, signal.LabelCautiousBuy} {
		rec := testRecord(label)
		sink.Emit(poller.Event{Status: poller.StatusOK, Record: &rec})
	}
	sink.Close()

	got := mock.snapshot()
	want := []signal.Label{signal.LabelStrongBuy, signal.LabelStrongSell, signal.LabelCautiousBuy}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSignalSinkIgnoresEmitAfterClose(t *testing.T) {
	mock := &mockNotifier{}
	sink := NewSignalSink(mock, zap.NewNop())
	sink.Close()
	sink.Close()

	rec := testRecord(signal.LabelStrongBuy)
	sink.Emit(poller.Event{Status: poller.StatusOK, Record: &rec})

	if got := mock.snapshot(); len(got) != 0 {
		t.Errorf("expected no notifications after close, got %v", got)
	}
}
