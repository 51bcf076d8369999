package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Send buffer size per client.
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dashboard may be served from elsewhere
	Subprotocols:    []string{SubprotocolProtobuf, SubprotocolJSON},
}

// Client represents a WebSocket client connection.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	connID   string
	groups   map[string]bool
	logger   *zap.Logger
	protocol string // "protobuf" or "json"
}

// HandleWS upgrades the connection. Clients join the groups listed in the
// comma-separated "groups" query parameter, or "signals" by default.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	groups := []string{GroupSignals}
	if q := r.URL.Query().Get("groups"); q != "" {
		groups = groups[:0]
		for _, g := range strings.Split(q, ",") {
			g = strings.TrimSpace(g)
			if !validGroups[g] {
				http.Error(w, "unknown group "+g, http.StatusBadRequest)
				return
			}
			groups = append(groups, g)
		}
	}

	// Negotiate subprotocol - JSON unless the client asks for protobuf
	protocol := ProtocolJSON
	var responseHeader http.Header
	for _, proto := range websocket.Subprotocols(r) {
		switch proto {
		case SubprotocolProtobuf:
			protocol = ProtocolProtobuf
			responseHeader = http.Header{"Sec-WebSocket-Protocol": {proto}}
		case SubprotocolJSON:
			protocol = ProtocolJSON
			responseHeader = http.Header{"Sec-WebSocket-Protocol": {proto}}
		}
		if responseHeader != nil {
			break
		}
	}

	// Upgrade to WebSocket
	conn, err := upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		connID:   uuid.New().String(),
		groups:   make(map[string]bool),
		logger:   h.logger,
		protocol: protocol,
	}

	h.addClient(client)
	client.enqueue(connectedMessage(client.connID, h.sessionID))
	for _, g := range groups {
		h.JoinGroup(client, g)
	}

	// Start read/write pumps
	go client.writePump()
	go client.readPump()
}

// enqueue encodes msg for this client and queues it unless the client has
// already been removed.
func (c *Client) enqueue(msg map[string]any) {
	frame, err := c.hub.encoder.Encode(c.protocol, msg)
	if err != nil {
		c.logger.Debug("failed to encode message", zap.String("connID", c.connID), zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- frame:
	default:
		go c.hub.scheduleRemove(c)
	}
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.scheduleRemove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error",
					zap.String("connID", c.connID),
					zap.Error(err),
				)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	// Determine message type based on protocol
	msgType := websocket.BinaryMessage
	if c.protocol == ProtocolJSON {
		msgType = websocket.TextMessage
	}

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed, send close message
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msgType, message); err != nil {
				c.logger.Debug("websocket write error",
					zap.String("connID", c.connID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming upstream message.
func (c *Client) handleMessage(data []byte) {
	decoded, err := c.hub.encoder.Decode(c.protocol, data)
	var msg any
	if err == nil {
		msg, err = parseUpstream(decoded)
	}
	if err != nil {
		c.logger.Debug("failed to parse upstream message",
			zap.String("connID", c.connID),
			zap.String("protocol", c.protocol),
			zap.Error(err),
		)
		return
	}

	switch m := msg.(type) {
	case *joinGroupRequest:
		ok := validGroups[m.group]
		if ok {
			c.hub.JoinGroup(c, m.group)
		} else {
			c.logger.Debug("invalid group name",
				zap.String("connID", c.connID),
				zap.String("group", m.group),
			)
		}
		if m.ackID != nil {
			c.enqueue(ackMessage(*m.ackID, ok))
		}

	case *leaveGroupRequest:
		c.hub.LeaveGroup(c, m.group)
		if m.ackID != nil {
			c.enqueue(ackMessage(*m.ackID, true))
		}

	case *pingRequest:
		c.enqueue(pongMessage())
	}
}

// RecordMessage is the payload published to the signals group.
func RecordMessage(rec session.DecisionRecord) (map[string]any, error) {
	m, err := toMap(rec)
	if err != nil {
		return nil, err
	}
	m["color"] = rec.Color()
	return m, nil
}
