// Package server exposes the session's decisions over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/export"
	"github.com/dgnsrekt/oi-scalper/internal/session"
)

const defaultLogLimit = 100

// Refresher queues a manual poll cycle.
type Refresher interface {
	Refresh() bool
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

type Server struct {
	state      *session.State
	refresher  Refresher
	clients    ClientCounter
	instrument string
	logger     *zap.Logger
}

func NewServer(state *session.State, refresher Refresher, clients ClientCounter, instrument string, logger *zap.Logger) *Server {
	return &Server{
		state:      state,
		refresher:  refresher,
		clients:    clients,
		instrument: instrument,
		logger:     logger,
	}
}

type HealthResponse struct {
	Status     string     `json:"status"`
	SessionID  string     `json:"session_id"`
	StartedAt  time.Time  `json:"started_at"`
	LastStatus string     `json:"last_status,omitempty"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	Decisions  int        `json:"decisions"`
	WSClients  int        `json:"ws_clients"`
}

type Display struct {
	Spot      string `json:"spot"`
	EMA       string `json:"ema"`
	RSI       string `json:"rsi"`
	NetChange string `json:"net_change"`
	OISlope   string `json:"oi_slope"`
	Color     string `json:"color"`
}

type LatestResponse struct {
	Status     string                  `json:"status"`
	UpdatedAt  *time.Time              `json:"updated_at,omitempty"`
	Instrument string                  `json:"instrument,omitempty"`
	Record     *session.DecisionRecord `json:"record,omitempty"`
	Display    *Display                `json:"display,omitempty"`
}

type LogResponse struct {
	Count   int                      `json:"count"`
	Total   int                      `json:"total"`
	Records []session.DecisionRecord `json:"records"`
}

type RefreshResponse struct {
	Queued  bool   `json:"queued"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// GetHealth handles GET /health
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, updated := s.state.Status()
	resp := HealthResponse{
		Status:     "ok",
		SessionID:  s.state.ID(),
		StartedAt:  s.state.StartedAt(),
		LastStatus: status,
		LastUpdate: timePtr(updated),
		Decisions:  len(s.state.Snapshot()),
	}
	if s.clients != nil {
		resp.WSClients = s.clients.ClientCount()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetLatestSignal handles GET /api/v1/signal/latest
func (s *Server) GetLatestSignal(w http.ResponseWriter, r *http.Request) {
	status, updated := s.state.Status()
	if status == "" {
		status = "waiting for data"
	}

	resp := LatestResponse{
		Status:     status,
		UpdatedAt:  timePtr(updated),
		Instrument: s.instrument,
	}
	if rec, ok := s.state.Latest(); ok {
		resp.Record = &rec
		resp.Display = DisplayFor(rec)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetSignalLog handles GET /api/v1/signal/log
func (s *Server) GetSignalLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	all := s.state.Snapshot()
	n := min(limit, len(all))
	records := make([]session.DecisionRecord, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		records = append(records, all[i])
	}

	s.writeJSON(w, http.StatusOK, LogResponse{
		Count:   len(records),
		Total:   len(all),
		Records: records,
	})
}

// GetSignalLogCSV handles GET /api/v1/signal/log.csv
func (s *Server) GetSignalLogCSV(w http.ResponseWriter, r *http.Request) {
	filename := "oi_scalper_" + time.Now().Format("20060102_150405") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteCSV(w, s.state.Snapshot()); err != nil {
		s.logger.Error("failed to write csv export", zap.Error(err))
	}
}

// PostRefresh handles POST /api/v1/refresh
func (s *Server) PostRefresh(w http.ResponseWriter, r *http.Request) {
	queued := s.refresher.Refresh()
	msg := "refresh queued"
	if !queued {
		msg = "refresh already pending"
	}
	s.logger.Info("manual refresh", zap.Bool("queued", queued))
	s.writeJSON(w, http.StatusAccepted, RefreshResponse{Queued: queued, Message: msg})
}

// DisplayFor formats a record the way the dashboard tiles show it.
func DisplayFor(rec session.DecisionRecord) *Display {
	return &Display{
		Spot:      export.Fixed(rec.Spot, 2),
		EMA:       export.Fixed(rec.EMA, 2),
		RSI:       export.Fixed(rec.RSI, 1),
		NetChange: export.Crore(rec.NetChange),
		OISlope:   export.Lakh(rec.OISlope),
		Color:     rec.Color(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
