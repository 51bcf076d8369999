// Package dhan talks to the DhanHQ v2 REST API and normalizes its
// responses into the types the signal pipeline consumes.
package dhan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/oi-scalper/internal/oi"
	"github.com/dgnsrekt/oi-scalper/internal/session"
)

// Client interface for testability
type Client interface {
	FetchOptionChain(ctx context.Context, securityID int, segment, expiry string) (*oi.Snapshot, error)
	ListExpiries(ctx context.Context, securityID int, segment string) ([]string, error)
	FetchIntraday(ctx context.Context, req IntradayRequest) ([]session.PriceSample, error)
}

// ClientConfig holds the connection settings for NewClient.
type ClientConfig struct {
	BaseURL       string
	ClientID      string
	AccessToken   string
	Timeout       time.Duration
	RetryCount    int
	RetryDelay    time.Duration
	RatePerSecond float64
	Location      *time.Location
}

type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	accessToken string
	limiter     *rate.Limiter
	retryCount  int
	retryDelay  time.Duration
	loc         *time.Location
	logger      *zap.Logger
}

// apiError is the body DhanHQ returns on rejected requests.
type apiError struct {
	ErrorType    string `json:"errorType"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       10,
		MaxConnsPerHost:    4,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	burst := int(math.Max(1, cfg.RatePerSecond*2))

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		clientID:    cfg.ClientID,
		accessToken: cfg.AccessToken,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
		retryCount:  cfg.RetryCount,
		retryDelay:  cfg.RetryDelay,
		loc:         loc,
		logger:      logger,
	}
}

// post sends a JSON request and returns the raw 200 body. Transport errors,
// 429 and 5xx are retried with exponential backoff.
func (c *HTTPClient) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Op: op, Kind: KindTransport, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encoding request: %w", op, err)
	}

	url := c.baseURL + path
	c.logger.Debug("requesting", zap.String("op", op), zap.String("url", url))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, &FetchError{Op: op, Kind: KindTransport, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("%s: creating request: %w", op, err)
		}

		req.Header.Set("access-token", c.accessToken)
		req.Header.Set("client-id", c.clientID)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &FetchError{Op: op, Kind: KindTransport, Err: err}
			continue
		}

		// Read body before closing for error messages
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = &FetchError{Op: op, Kind: KindTransport, Err: readErr}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &FetchError{Op: op, Kind: KindStatus, Status: resp.StatusCode, Err: ErrAuthFailed}
		case resp.StatusCode == http.StatusNotFound:
			return nil, &FetchError{Op: op, Kind: KindStatus, Status: resp.StatusCode, Err: ErrNotFound}
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = &FetchError{Op: op, Kind: KindStatus, Status: resp.StatusCode, Err: ErrRateLimited}
			continue
		case resp.StatusCode >= 500:
			lastErr = &FetchError{Op: op, Kind: KindStatus, Status: resp.StatusCode, Err: fmt.Errorf("server error")}
			continue
		default:
			return nil, &FetchError{Op: op, Kind: KindStatus, Status: resp.StatusCode, Err: errors.New(describeError(body))}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func describeError(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.ErrorMessage != "" {
		return fmt.Sprintf("%s %s: %s", ae.ErrorType, ae.ErrorCode, ae.ErrorMessage)
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return "unexpected response: " + string(body)
}

// FetchOptionChain returns the normalized chain for one expiry. An empty
// chain or a zero last price is reported as ErrEmptyData.
func (c *HTTPClient) FetchOptionChain(ctx context.Context, securityID int, segment, expiry string) (*oi.Snapshot, error) {
	const op = "option chain"
	body, err := c.post(ctx, op, "/v2/optionchain", map[string]any{
		"UnderlyingScrip": securityID,
		"UnderlyingSeg":   segment,
		"Expiry":          expiry,
	})
	if err != nil {
		return nil, err
	}

	snap, err := NormalizeChain(body, expiry)
	if err != nil {
		return nil, wrapOp(op, err)
	}

	c.logger.Debug("option chain fetched",
		zap.String("expiry", expiry),
		zap.Float64("last_price", snap.LastPrice),
		zap.Int("strikes", len(snap.Strikes)))

	return snap, nil
}

// ListExpiries returns the raw expiry strings for an underlying.
func (c *HTTPClient) ListExpiries(ctx context.Context, securityID int, segment string) ([]string, error) {
	const op = "expiry list"
	body, err := c.post(ctx, op, "/v2/optionchain/expirylist", map[string]any{
		"UnderlyingScrip": securityID,
		"UnderlyingSeg":   segment,
	})
	if err != nil {
		return nil, err
	}

	dates, err := parseExpiryList(body)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	return dates, nil
}

func wrapOp(op string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		fe.Op = op
		return fe
	}
	return &FetchError{Op: op, Kind: KindDecode, Err: err}
}
