package sse

import (
	"time"

	"github.com/dgnsrekt/oi-scalper/internal/session"
)

// Snapshot is the first event a subscriber receives.
type Snapshot struct {
	SessionID string                  `json:"session_id"`
	Sequence  uint64                  `json:"sequence"`
	Status    string                  `json:"status,omitempty"`
	UpdatedAt *time.Time              `json:"updated_at,omitempty"`
	Decisions int                     `json:"decisions"`
	Latest    *session.DecisionRecord `json:"latest,omitempty"`
}

// Decision carries one new record with its colour hint.
type Decision struct {
	Sequence uint64                 `json:"sequence"`
	Color    string                 `json:"color"`
	Record   session.DecisionRecord `json:"record"`
}

// Status reports a cycle outcome.
type Status struct {
	Sequence uint64    `json:"sequence"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

// Heartbeat keeps idle connections alive through proxies.
type Heartbeat struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
}
