package dhan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/oi"
)

// Candidate is one (security id, segment) pair to try.
type Candidate struct {
	SecurityID int
	Segment    string
}

// Resolution is the candidate and expiry that produced a chain.
type Resolution struct {
	Candidate Candidate
	Expiry    string
}

// Resolver walks the candidate list until one yields an expiry and a
// usable option chain.
type Resolver struct {
	client     Client
	candidates []Candidate
	now        func() time.Time
	// Fallback, when set, supplies an expiry for a candidate whose
	// expiry list could not be read.
	Fallback func(now time.Time) string
	logger   *zap.Logger
}

func NewResolver(client Client, candidates []Candidate, now func() time.Time, logger *zap.Logger) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		client:     client,
		candidates: candidates,
		now:        now,
		logger:     logger,
	}
}

// Expiry discovers the nearest expiry for one candidate.
func (r *Resolver) Expiry(ctx context.Context, cand Candidate) (string, error) {
	dates, err := r.client.ListExpiries(ctx, cand.SecurityID, cand.Segment)
	if err == nil {
		var expiry string
		expiry, err = NearestExpiry(dates, r.now())
		if err == nil {
			return expiry, nil
		}
	}

	if r.Fallback != nil && !errors.Is(err, ErrAuthFailed) {
		expiry := r.Fallback(r.now())
		r.logger.Debug("using fallback expiry",
			zap.Int("security_id", cand.SecurityID),
			zap.String("segment", cand.Segment),
			zap.String("expiry", expiry),
			zap.Error(err))
		return expiry, nil
	}
	return "", err
}

// Resolve returns the first chain any candidate produces. When every
// candidate fails, the last failure is returned.
func (r *Resolver) Resolve(ctx context.Context) (*oi.Snapshot, Resolution, error) {
	lastErr := error(ErrNoExpiry)

	for _, cand := range r.candidates {
		if err := ctx.Err(); err != nil {
			return nil, Resolution{}, err
		}

		expiry, err := r.Expiry(ctx, cand)
		if err != nil {
			r.logger.Debug("no expiry for candidate",
				zap.Int("security_id", cand.SecurityID),
				zap.String("segment", cand.Segment),
				zap.Error(err))
			lastErr = err
			continue
		}

		snap, err := r.client.FetchOptionChain(ctx, cand.SecurityID, cand.Segment, expiry)
		if err != nil {
			r.logger.Debug("option chain unavailable for candidate",
				zap.Int("security_id", cand.SecurityID),
				zap.String("segment", cand.Segment),
				zap.String("expiry", expiry),
				zap.Error(err))
			lastErr = err
			continue
		}

		return snap, Resolution{Candidate: cand, Expiry: expiry}, nil
	}

	return nil, Resolution{}, fmt.Errorf("resolving option chain over %d candidates: %w", len(r.candidates), lastErr)
}
