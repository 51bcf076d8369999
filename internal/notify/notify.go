// Package notify pushes actionable signal changes to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

// Notifier is the interface for sending signal notifications.
type Notifier interface {
	SendSignal(ctx context.Context, rec session.DecisionRecord, previous signal.Label) error
}

// Client implements the ntfy notification client.
type Client struct {
	httpClient *http.Client
	config     *Config
	instrument string
	logger     *zap.Logger
}

// NewClient creates a new ntfy client.
func NewClient(cfg *Config, instrument string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config:     cfg,
		instrument: instrument,
		logger:     logger,
	}
}

// SendSignal sends a notification for a new signal label.
func (c *Client) SendSignal(ctx context.Context, rec session.DecisionRecord, previous signal.Label) error {
	if !c.config.Enabled {
		return nil
	}

	title := FormatTitle(c.instrument, rec)
	message := FormatSignalMessage(rec, previous)
	tags := c.config.Tags + "," + tagFor(rec.Signal)

	priority := c.config.Priority
	if rec.Signal == signal.LabelCautiousBuy {
		priority = c.config.CautionPriority
		if priority == "" {
			priority = "default"
		}
	}

	return c.send(ctx, title, message, tags, priority)
}

func (c *Client) send(ctx context.Context, title, message, tags, priority string) error {
	url := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.config.Server, "/"), c.config.Topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Title", title)
	req.Header.Set("Priority", priority)
	req.Header.Set("Tags", tags)

	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to send notification", zap.Error(err))
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("notification failed",
			zap.Int("status", resp.StatusCode),
			zap.String("url", url),
		)
		return fmt.Errorf("notification failed with status: %d", resp.StatusCode)
	}

	c.logger.Debug("notification sent", zap.String("title", title))
	return nil
}

// NoopNotifier is a no-op implementation for when notifications are disabled.
type NoopNotifier struct{}

// SendSignal is a no-op.
func (n *NoopNotifier) SendSignal(_ context.Context, _ session.DecisionRecord, _ signal.Label) error {
	return nil
}

// New creates the appropriate notifier based on config.
func New(cfg *Config, instrument string, logger *zap.Logger) Notifier {
	if !cfg.Enabled {
		return &NoopNotifier{}
	}
	return NewClient(cfg, instrument, logger)
}
