package poller

import (
	"time"

	"github.com/dgnsrekt/oi-scalper/internal/session"
)

// Cycle outcomes published on the session and to sinks.
const (
	StatusOK           = "ok"
	StatusNoData       = "no data"
	StatusMarketClosed = "market closed"
)

// Event is what a completed cycle publishes. Record is nil unless the
// cycle produced a new decision.
type Event struct {
	Status string
	At     time.Time
	Record *session.DecisionRecord
	Err    error
}

// Sink receives cycle events. Emit is called from the poll goroutine and
// must not block for long.
type Sink interface {
	Emit(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) { f(ev) }
