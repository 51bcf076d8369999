// Package sse streams decisions to browsers as server-sent events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/poller"
	"github.com/dgnsrekt/oi-scalper/internal/session"
)

// Broadcaster fans poller events out to connected SSE subscribers.
type Broadcaster struct {
	state    *session.State
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	sequence uint64
	clients  map[*sseClient]bool
}

// sseClient represents a connected SSE subscriber.
type sseClient struct {
	dataCh  chan []byte
	doneCh  chan struct{}
	flusher http.Flusher
	writer  http.ResponseWriter
}

// NewBroadcaster creates a broadcaster. interval is the heartbeat period.
func NewBroadcaster(state *session.State, interval time.Duration, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Broadcaster{
		state:    state,
		interval: interval,
		logger:   logger,
		clients:  make(map[*sseClient]bool),
	}
}

// Run sends heartbeats until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info("sse broadcaster starting", zap.Duration("interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("sse broadcaster stopping")
			return
		case t := <-ticker.C:
			seq := b.next()
			b.broadcast("heartbeat", Heartbeat{Sequence: seq, Timestamp: t.Unix()}, seq)
		}
	}
}

// Emit implements poller.Sink.
func (b *Broadcaster) Emit(ev poller.Event) {
	if ev.Record != nil {
		seq := b.next()
		b.broadcast("decision", Decision{Sequence: seq, Color: ev.Record.Color(), Record: *ev.Record}, seq)
	}

	seq := b.next()
	st := Status{Sequence: seq, Status: ev.Status, At: ev.At}
	if ev.Err != nil {
		st.Error = ev.Err.Error()
	}
	b.broadcast("status", st, seq)
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE handles the SSE endpoint for subscribers.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	// Check if SSE is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's WriteTimeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := &sseClient{
		dataCh:  make(chan []byte, 10),
		doneCh:  make(chan struct{}),
		flusher: flusher,
		writer:  w,
	}

	b.addClient(client)
	defer b.removeClient(client)

	b.logger.Info("sse client connected", zap.String("remote_addr", r.RemoteAddr))

	seq := b.next()
	if err := b.sendEvent(client, "snapshot", b.buildSnapshot(seq), seq); err != nil {
		b.logger.Error("failed to send snapshot", zap.Error(err))
		return
	}

	// Stream events
	for {
		select {
		case <-r.Context().Done():
			b.logger.Info("sse client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case <-client.doneCh:
			return
		case eventData := <-client.dataCh:
			if _, err := client.writer.Write(eventData); err != nil {
				b.logger.Debug("failed to write to client", zap.Error(err))
				return
			}
			client.flusher.Flush()
		}
	}
}

func (b *Broadcaster) addClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
}

func (b *Broadcaster) removeClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	close(client.doneCh)
}

func (b *Broadcaster) next() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sequence++
	return b.sequence
}

func (b *Broadcaster) buildSnapshot(seq uint64) *Snapshot {
	status, updated := b.state.Status()
	snap := &Snapshot{
		SessionID: b.state.ID(),
		Sequence:  seq,
		Status:    status,
		Decisions: len(b.state.Snapshot()),
	}
	if !updated.IsZero() {
		snap.UpdatedAt = &updated
	}
	if rec, ok := b.state.Latest(); ok {
		snap.Latest = &rec
	}
	return snap
}

func (b *Broadcaster) broadcast(eventType string, data any, seq uint64) {
	eventData, err := formatEvent(eventType, data, seq)
	if err != nil {
		b.logger.Error("failed to format event", zap.String("event", eventType), zap.Error(err))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.dataCh <- eventData:
		default:
			// Channel full, client is slow
			b.logger.Debug("client channel full, dropping event", zap.String("event", eventType))
		}
	}
}

func (b *Broadcaster) sendEvent(client *sseClient, eventType string, data any, seq uint64) error {
	eventData, err := formatEvent(eventType, data, seq)
	if err != nil {
		return err
	}

	if _, err := client.writer.Write(eventData); err != nil {
		return err
	}
	client.flusher.Flush()
	return nil
}

func formatEvent(eventType string, data any, seq uint64) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", eventType, seq, jsonData)), nil
}
