// Package ws streams decision records and cycle status to websocket
// clients.
package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/poller"
)

// Replayer returns the current message for a group, sent to clients as
// soon as they join it.
type Replayer func(group string) (map[string]any, bool)

// Hub manages WebSocket connections and group subscriptions.
type Hub struct {
	name       string
	sessionID  string
	clients    map[*Client]bool
	groups     map[string]map[*Client]bool // group -> clients
	unregister chan *Client
	done       chan struct{}
	encoder    *Encoder
	replay     Replayer
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new Hub. replay may be nil.
func NewHub(name, sessionID string, replay Replayer, logger *zap.Logger) (*Hub, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	return &Hub{
		name:       name,
		sessionID:  sessionID,
		clients:    make(map[*Client]bool),
		groups:     make(map[string]map[*Client]bool),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		encoder:    enc,
		replay:     replay,
		logger:     logger,
	}, nil
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", zap.String("hub", h.name))
			h.shutdown()
			return

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	h.logger.Debug("client registered",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
		zap.String("protocol", client.protocol),
	)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		// Remove from all groups
		for group := range client.groups {
			if clients, ok := h.groups[group]; ok {
				delete(clients, client)
				if len(clients) == 0 {
					delete(h.groups, group)
				}
			}
		}
		close(client.send)
	}
	h.mu.Unlock()
	h.logger.Debug("client unregistered",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
	)
}

// scheduleRemove hands a client to the Run loop without blocking after
// shutdown.
func (h *Hub) scheduleRemove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.groups = make(map[string]map[*Client]bool)
}

// JoinGroup adds a client to a group. Clients already removed are ignored.
func (h *Hub) JoinGroup(client *Client, group string) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][client] = true
	client.groups[group] = true
	h.mu.Unlock()

	h.logger.Debug("client joined group",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
		zap.String("group", group),
	)

	if h.replay != nil {
		if msg, ok := h.replay(group); ok {
			client.enqueue(dataMessage(group, msg))
		}
	}
}

// LeaveGroup removes a client from a group.
func (h *Hub) LeaveGroup(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.groups[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)

	h.logger.Debug("client left group",
		zap.String("hub", h.name),
		zap.String("connID", client.connID),
		zap.String("group", group),
	)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends data to every client in group, encoded once per protocol.
func (h *Hub) Publish(group string, data map[string]any) {
	msg := dataMessage(group, data)
	frames := make(map[string][]byte, 2)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.groups[group] {
		frame, ok := frames[client.protocol]
		if !ok {
			var err error
			frame, err = h.encoder.Encode(client.protocol, msg)
			if err != nil {
				h.logger.Error("failed to encode message",
					zap.String("group", group),
					zap.String("protocol", client.protocol),
					zap.Error(err))
				return
			}
			frames[client.protocol] = frame
		}

		select {
		case client.send <- frame:
		default:
			// Buffer full, schedule disconnect
			go h.scheduleRemove(client)
		}
	}
}

// Emit implements poller.Sink.
func (h *Hub) Emit(ev poller.Event) {
	if ev.Record != nil {
		if m, err := RecordMessage(*ev.Record); err == nil {
			h.Publish(GroupSignals, m)
		} else {
			h.logger.Error("failed to convert record", zap.Error(err))
		}
	}
	h.Publish(GroupStatus, StatusMessage(ev.Status, ev.At, ev.Err))
}

// StatusMessage is the payload published to the status group.
func StatusMessage(status string, at time.Time, err error) map[string]any {
	m := map[string]any{
		"status": status,
		"at":     at.Format(time.RFC3339),
	}
	if err != nil {
		m["error"] = err.Error()
	}
	return m
}
