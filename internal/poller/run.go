package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const countdownStep = 30 * time.Second

// Run polls until ctx is cancelled. Cycles never overlap; a refresh request
// cuts the current wait short.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		zap.String("session", p.state.ID()),
		zap.Duration("interval", p.opts.Interval),
		zap.Bool("enforce_hours", p.opts.EnforceHours))

	for {
		if _, err := p.Cycle(ctx); err != nil && ctx.Err() == nil && !errors.Is(err, ErrMarketClosed) {
			p.logger.Debug("cycle aborted", zap.Error(err))
		}

		if err := p.wait(ctx); err != nil {
			p.logger.Info("poller stopped", zap.Int("decisions", len(p.state.Snapshot())))
			return nil
		}
	}
}

// Refresh asks the poll loop to run a cycle now. Requests made while one is
// already pending are coalesced; the return value reports whether this call
// queued a new one.
func (p *Poller) Refresh() bool {
	select {
	case p.refresh <- struct{}{}:
		return true
	default:
		return false
	}
}

func (p *Poller) wait(ctx context.Context) error {
	timer := time.NewTimer(p.opts.Interval)
	defer timer.Stop()

	var countdown <-chan time.Time
	if p.opts.Countdown {
		ticker := time.NewTicker(countdownStep)
		defer ticker.Stop()
		countdown = ticker.C
	}
	deadline := time.Now().Add(p.opts.Interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-p.refresh:
			p.logger.Info("manual refresh requested")
			return nil
		case <-countdown:
			p.logger.Info("next refresh",
				zap.Duration("in", time.Until(deadline).Round(time.Second)))
		}
	}
}
