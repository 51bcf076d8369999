package ws

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// NegotiateResponse tells a dashboard where and how to connect.
type NegotiateResponse struct {
	SessionID     string            `json:"session_id"`
	WebsocketURLs map[string]string `json:"websocket_urls"`
	Subprotocols  []string          `json:"subprotocols"`
}

// NegotiateHandler handles the /negotiate endpoint.
type NegotiateHandler struct {
	sessionID string
	logger    *zap.Logger
}

// NewNegotiateHandler creates a new NegotiateHandler.
func NewNegotiateHandler(sessionID string, logger *zap.Logger) *NegotiateHandler {
	return &NegotiateHandler{sessionID: sessionID, logger: logger}
}

// HandleNegotiate handles GET /negotiate and returns one websocket URL per
// group, built from the request host.
func (h *NegotiateHandler) HandleNegotiate(w http.ResponseWriter, r *http.Request) {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	baseURL := fmt.Sprintf("%s://%s/ws", scheme, r.Host)

	response := NegotiateResponse{
		SessionID: h.sessionID,
		WebsocketURLs: map[string]string{
			GroupSignals: baseURL + "?groups=" + GroupSignals,
			GroupStatus:  baseURL + "?groups=" + GroupStatus,
		},
		Subprotocols: []string{SubprotocolJSON, SubprotocolProtobuf},
	}

	h.logger.Debug("negotiate successful", zap.String("host", r.Host))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode negotiate response", zap.Error(err))
	}
}
