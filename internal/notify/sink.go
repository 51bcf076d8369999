package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/poller"
	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

const (
	sendTimeout = 15 * time.Second
	queueSize   = 16
)

type alert struct {
	rec      session.DecisionRecord
	previous signal.Label
}

// SignalSink forwards label changes to a Notifier. Only transitions into an
// actionable label are sent; repeats of the same label are not. Alerts are
// delivered one at a time in the order they were emitted.
type SignalSink struct {
	notifier Notifier
	logger   *zap.Logger

	mu     sync.Mutex
	last   signal.Label
	closed bool
	queue  chan alert
	done   chan struct{}
}

// NewSignalSink starts the delivery worker. Call Close to stop it.
func NewSignalSink(notifier Notifier, logger *zap.Logger) *SignalSink {
	s := &SignalSink{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan alert, queueSize),
		done:     make(chan struct{}),
	}
	go s.deliver()
	return s
}

// Emit implements poller.Sink. It never blocks: when the queue is full the
// alert is dropped and logged.
func (s *SignalSink) Emit(ev poller.Event) {
	if ev.Record == nil {
		return
	}
	rec := *ev.Record

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.last
	s.last = rec.Signal
	if s.closed || rec.Signal == previous || !rec.Signal.Actionable() {
		return
	}

	select {
	case s.queue <- alert{rec: rec, previous: previous}:
	default:
		s.logger.Warn("notification queue full, dropping alert",
			zap.String("signal", string(rec.Signal)))
	}
}

// Close stops accepting alerts and waits for queued ones to be sent.
func (s *SignalSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *SignalSink) deliver() {
	defer close(s.done)
	for a := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := s.notifier.SendSignal(ctx, a.rec, a.previous); err != nil {
			s.logger.Warn("signal notification failed",
				zap.String("signal", string(a.rec.Signal)),
				zap.Error(err),
			)
		}
		cancel()
	}
}
