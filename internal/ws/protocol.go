package ws

import "fmt"

// Wire protocols, negotiated through Sec-WebSocket-Protocol.
const (
	ProtocolJSON     = "json"
	ProtocolProtobuf = "protobuf"

	SubprotocolJSON     = "json.oiscalper.v1"
	SubprotocolProtobuf = "protobuf.oiscalper.v1"
)

// Groups clients can join.
const (
	GroupSignals = "signals"
	GroupStatus  = "status"
)

var validGroups = map[string]bool{GroupSignals: true, GroupStatus: true}

// Upstream message types for internal routing
type (
	joinGroupRequest struct {
		group string
		ackID *uint64
	}
	leaveGroupRequest struct {
		group string
		ackID *uint64
	}
	pingRequest struct{}
)

// parseUpstream routes a decoded client message.
func parseUpstream(msg map[string]any) (any, error) {
	msgType, _ := msg["type"].(string)

	switch msgType {
	case "joinGroup":
		group, _ := msg["group"].(string)
		return &joinGroupRequest{group: group, ackID: ackID(msg)}, nil

	case "leaveGroup":
		group, _ := msg["group"].(string)
		return &leaveGroupRequest{group: group, ackID: ackID(msg)}, nil

	case "ping":
		return &pingRequest{}, nil

	default:
		return nil, fmt.Errorf("unknown message type: %q", msgType)
	}
}

func ackID(msg map[string]any) *uint64 {
	if v, ok := msg["ackId"].(float64); ok && v >= 0 {
		id := uint64(v)
		return &id
	}
	return nil
}

func connectedMessage(connID, sessionID string) map[string]any {
	return map[string]any{
		"type":         "system",
		"event":        "connected",
		"connectionId": connID,
		"sessionId":    sessionID,
	}
}

func ackMessage(id uint64, success bool) map[string]any {
	return map[string]any{
		"type":    "ack",
		"ackId":   float64(id),
		"success": success,
	}
}

func pongMessage() map[string]any {
	return map[string]any{"type": "pong"}
}

func dataMessage(group string, data map[string]any) map[string]any {
	return map[string]any{
		"type":  "message",
		"group": group,
		"data":  data,
	}
}
