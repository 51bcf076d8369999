// Package market answers whether the exchange is in session.
package market

import (
	"fmt"
	"time"

	"github.com/scmhub/calendar"
)

// Hours handles the exchange session window and trading day validation
type Hours struct {
	location *time.Location
	open     time.Duration
	close    time.Duration
	exchange *calendar.Calendar
}

// NewHours creates a session window in timezone. open and close are HH:MM.
func NewHours(timezone, open, close string) (*Hours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	o, err := clock(open)
	if err != nil {
		return nil, fmt.Errorf("parsing open %q: %w", open, err)
	}
	c, err := clock(close)
	if err != nil {
		return nil, fmt.Errorf("parsing close %q: %w", close, err)
	}
	return &Hours{
		location: loc,
		open:     o,
		close:    c,
		exchange: calendar.XBOM(), // BSE and NSE share the exchange holiday list
	}, nil
}

func clock(hhmm string) (time.Duration, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Location returns the exchange timezone
func (h *Hours) Location() *time.Location {
	return h.location
}

// Now returns the current time in the exchange timezone.
func (h *Hours) Now() time.Time {
	return time.Now().In(h.location)
}

// IsMarketDay checks if t falls on a trading day (not weekend/holiday)
func (h *Hours) IsMarketDay(t time.Time) bool {
	local := t.In(h.location)
	// Check at noon to stay clear of date boundary effects
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, h.location)
	return h.exchange.IsBusinessDay(noon)
}

// SessionOpen returns the session start on t's exchange date.
func (h *Hours) SessionOpen(t time.Time) time.Time {
	return midnight(t.In(h.location)).Add(h.open)
}

// SessionClose returns the session end on t's exchange date.
func (h *Hours) SessionClose(t time.Time) time.Time {
	return midnight(t.In(h.location)).Add(h.close)
}

// IsOpen reports whether t is a trading day within [open, close].
func (h *Hours) IsOpen(t time.Time) bool {
	if !h.IsMarketDay(t) {
		return false
	}
	return !t.Before(h.SessionOpen(t)) && !t.After(h.SessionClose(t))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
