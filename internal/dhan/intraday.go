package dhan

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/session"
)

const chartTimeLayout = "2006-01-02 15:04:05"

// IntradayRequest selects one instrument's 1-minute candles.
type IntradayRequest struct {
	SecurityID     int
	Segment        string
	InstrumentType string
	From           time.Time
	To             time.Time
}

type candles struct {
	Close     []float64       `json:"close"`
	Timestamp []float64       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FetchIntraday returns the closes of today's 1-minute candles, oldest
// first. Candles with a non-positive close are dropped.
func (c *HTTPClient) FetchIntraday(ctx context.Context, req IntradayRequest) ([]session.PriceSample, error) {
	const op = "intraday"
	body, err := c.post(ctx, op, "/v2/charts/intraday", map[string]any{
		"securityId":      strconv.Itoa(req.SecurityID),
		"exchangeSegment": req.Segment,
		"instrument":      req.InstrumentType,
		"interval":        "1",
		"oi":              false,
		"fromDate":        req.From.In(c.loc).Format(chartTimeLayout),
		"toDate":          req.To.In(c.loc).Format(chartTimeLayout),
	})
	if err != nil {
		return nil, err
	}

	samples, err := parseCandles(body, c.loc)
	if err != nil {
		return nil, wrapOp(op, err)
	}

	c.logger.Debug("intraday candles fetched", zap.Int("samples", len(samples)))
	return samples, nil
}

func parseCandles(body []byte, loc *time.Location) ([]session.PriceSample, error) {
	var cs candles
	if err := json.Unmarshal(body, &cs); err != nil {
		return nil, &FetchError{Kind: KindDecode, Err: fmt.Errorf("decoding candles: %w", err)}
	}

	// some gateway versions wrap the arrays in a status envelope
	if len(cs.Close) == 0 && isObject(cs.Data) {
		var inner candles
		if err := json.Unmarshal(cs.Data, &inner); err != nil {
			return nil, &FetchError{Kind: KindDecode, Err: fmt.Errorf("decoding nested candles: %w", err)}
		}
		cs = inner
	}

	if len(cs.Close) == 0 {
		return nil, &FetchError{Kind: KindEmpty, Err: ErrEmptyData}
	}
	if len(cs.Timestamp) != len(cs.Close) {
		return nil, &FetchError{Kind: KindDecode, Err: fmt.Errorf("%d closes but %d timestamps", len(cs.Close), len(cs.Timestamp))}
	}

	samples := make([]session.PriceSample, 0, len(cs.Close))
	for i, v := range cs.Close {
		if v <= 0 {
			continue
		}
		samples = append(samples, session.PriceSample{
			Timestamp: time.Unix(int64(cs.Timestamp[i]), 0).In(loc),
			Value:     v,
		})
	}

	if len(samples) == 0 {
		return nil, &FetchError{Kind: KindEmpty, Err: ErrEmptyData}
	}
	return samples, nil
}
