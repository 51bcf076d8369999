// Package session holds the state that survives between polls: the capped
// price history, the decision log and the net OI change history.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory caps the retained price samples.
const DefaultMaxHistory = 500

// State is owned by the poll loop, which is its only writer. Readers (HTTP,
// websocket) take snapshots under the read lock.
type State struct {
	id         string
	startedAt  time.Time
	maxHistory int

	mu          sync.RWMutex
	prices      []PriceSample
	netChanges  []int64
	decisions   []DecisionRecord
	lastWindow  int64
	hasWindow   bool
	backfilled  bool
	lastStatus  string
	lastUpdated time.Time
}

// New creates an empty session.
func New(maxHistory int) *State {
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}
	return &State{
		id:         uuid.New().String(),
		startedAt:  time.Now(),
		maxHistory: maxHistory,
	}
}

// ID identifies this session in logs and API responses.
func (s *State) ID() string { return s.id }

// StartedAt returns the session creation time.
func (s *State) StartedAt() time.Time { return s.startedAt }

// AppendPrice adds a sample and drops the oldest beyond the cap.
func (s *State) AppendPrice(sample PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = appendCapped(s.prices, sample, s.maxHistory)
}

// SeedPrices appends a backfill batch in order, honouring the cap.
func (s *State) SeedPrices(samples []PriceSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		s.prices = appendCapped(s.prices, sample, s.maxHistory)
	}
}

func appendCapped[T any](buf []T, v T, limit int) []T {
	buf = append(buf, v)
	if over := len(buf) - limit; over > 0 {
		// copy forward so the backing array does not grow without bound
		n := copy(buf, buf[over:])
		buf = buf[:n]
	}
	return buf
}

// Prices returns the retained price values, oldest first.
func (s *State) Prices() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.prices))
	for i, p := range s.prices {
		out[i] = p.Value
	}
	return out
}

// LastPrice returns the newest sample, if any.
func (s *State) LastPrice() (PriceSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.prices) == 0 {
		return PriceSample{}, false
	}
	return s.prices[len(s.prices)-1], true
}

// HistoryLen returns the number of retained price samples.
func (s *State) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}

// AppendNetChange records the windowed net OI change of a completed poll.
func (s *State) AppendNetChange(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.netChanges = appendCapped(s.netChanges, v, s.maxHistory)
}

// NetChangeAgo returns the net change recorded n polls before the newest one.
// ok is false when fewer than n+1 values exist.
func (s *State) NetChangeAgo(n int) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := len(s.netChanges) - 1 - n
	if n < 0 || idx < 0 {
		return 0, false
	}
	return s.netChanges[idx], true
}

// SetWindowOI stores the ATM window's total OI for the next poll's buildup.
func (s *State) SetWindowOI(total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWindow = total
	s.hasWindow = true
}

// WindowOI returns the previous poll's ATM window total OI.
func (s *State) WindowOI() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastWindow, s.hasWindow
}

// AppendDecision adds rec unless the last entry has the same second-resolution
// timestamp. Returns whether the record was appended.
func (s *State) AppendDecision(rec DecisionRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.decisions); n > 0 && sameTick(s.decisions[n-1].Timestamp, rec.Timestamp) {
		return false
	}
	s.decisions = append(s.decisions, rec)
	return true
}

// LoggedAt reports whether the newest decision falls in the same second as t.
func (s *State) LoggedAt(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.decisions)
	return n > 0 && sameTick(s.decisions[n-1].Timestamp, t)
}

// Snapshot returns a copy of the decision log in chronological order.
func (s *State) Snapshot() []DecisionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DecisionRecord, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// Latest returns the newest decision record, if any.
func (s *State) Latest() (DecisionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.decisions) == 0 {
		return DecisionRecord{}, false
	}
	return s.decisions[len(s.decisions)-1], true
}

// MarkBackfilled records that the one-time intraday backfill ran.
func (s *State) MarkBackfilled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backfilled = true
}

// Backfilled reports whether the intraday backfill already ran.
func (s *State) Backfilled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backfilled
}

// SetStatus records the outcome of the latest cycle ("ok", "no data", ...).
func (s *State) SetStatus(status string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStatus = status
	s.lastUpdated = at
}

// Status returns the latest cycle outcome and when it happened.
func (s *State) Status() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStatus, s.lastUpdated
}

// Reset clears all accumulated state, keeping the session id.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = nil
	s.netChanges = nil
	s.decisions = nil
	s.lastWindow = 0
	s.hasWindow = false
	s.backfilled = false
	s.lastStatus = ""
	s.lastUpdated = time.Time{}
}
