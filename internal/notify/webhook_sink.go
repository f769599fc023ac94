package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultWebhookTimeout    = 10 * time.Second
	defaultWebhookWorkers    = 2
	defaultWebhookBufferSize = 100
	maxRetries               = 2
	userAgent                = "callwatchd/v1"
)

// WebhookEnvelope is the JSON payload POSTed to the host endpoint.
type WebhookEnvelope struct {
	// Event identifies the call-lifecycle event.
	Event string `json:"event"`
	// SchemaVersion allows consumers to detect breaking changes.
	SchemaVersion string `json:"schemaVersion"`
	// Timestamp is the RFC3339 time the notification was sent.
	Timestamp string `json:"timestamp"`
	// Payload contains the event data.
	Payload map[string]any `json:"payload"`
}

// webhookWork is an internal message sent to the worker pool.
type webhookWork struct {
	ctx      context.Context
	envelope WebhookEnvelope
}

// WebhookSink implements Sink by POSTing events to the host application.
type WebhookSink struct {
	httpClient *http.Client
	logger     *zap.Logger
	url        string
	authToken  string
	sendCh     chan webhookWork
	wg         sync.WaitGroup
}

// WebhookSinkConfig holds the configuration for creating a WebhookSink.
type WebhookSinkConfig struct {
	URL            string
	TimeoutSeconds int
	// InsecureSkipVerify disables TLS certificate verification. Only for
	// self-signed endpoints on trusted networks.
	InsecureSkipVerify bool
	// AuthToken is a pre-resolved bearer token. Rotation requires a restart.
	AuthToken string
}

// NewWebhookSink creates a WebhookSink. Returns an error if the URL is invalid.
func NewWebhookSink(logger *zap.Logger, cfg WebhookSinkConfig) (*WebhookSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = defaultWebhookTimeout
	}

	var transport http.RoundTripper
	if cfg.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &WebhookSink{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		logger:     logger.Named("webhook-sink"),
		url:        cfg.URL,
		authToken:  cfg.AuthToken,
		sendCh:     make(chan webhookWork, defaultWebhookBufferSize),
	}, nil
}

// Name implements Sink.
func (ws *WebhookSink) Name() string { return "webhook" }

// Start implements Sink. Launches background workers to drain the send channel.
func (ws *WebhookSink) Start(ctx context.Context) {
	for i := 0; i < defaultWebhookWorkers; i++ {
		ws.wg.Add(1)
		go ws.worker(ctx)
	}
	ws.logger.Info("Webhook sink started",
		zap.String("url", RedactURL(ws.url)),
		zap.Int("workers", defaultWebhookWorkers),
	)
}

// Close waits for all workers to finish draining queued notifications.
// Call after the context passed to Start is cancelled.
func (ws *WebhookSink) Close() {
	ws.wg.Wait()
}

// Notify implements Sink. Enqueues the event for async delivery.
func (ws *WebhookSink) Notify(ctx context.Context, event string, payload map[string]any) error {
	envelope := WebhookEnvelope{
		Event:         event,
		SchemaVersion: "1",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Payload:       payload,
	}

	select {
	case ws.sendCh <- webhookWork{ctx: ctx, envelope: envelope}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		webhookSendTotal.WithLabelValues("dropped").Inc()
		ws.logger.Warn("Webhook send buffer full, dropping notification",
			zap.String("event", event))
		return fmt.Errorf("webhook send buffer full")
	}
}

// worker drains the send channel and delivers notifications.
// On context cancellation, it drains remaining buffered items before exiting.
func (ws *WebhookSink) worker(ctx context.Context) {
	defer ws.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain remaining buffered items before exiting.
			for {
				select {
				case work := <-ws.sendCh:
					drainCtx, cancel := context.WithTimeout(context.Background(), ws.httpClient.Timeout)
					if err := ws.doSend(drainCtx, work.envelope); err != nil {
						ws.logger.Warn("Webhook send failed during shutdown drain",
							zap.String("url", RedactURL(ws.url)),
							zap.Error(err),
						)
					}
					cancel()
				default:
					return
				}
			}
		case work, ok := <-ws.sendCh:
			if !ok {
				return
			}
			if err := ws.doSend(work.ctx, work.envelope); err != nil {
				ws.logger.Error("Webhook send failed",
					zap.String("url", RedactURL(ws.url)),
					zap.Error(err),
				)
			}
		}
	}
}

// doSend performs the HTTP POST with retry logic.
func (ws *WebhookSink) doSend(ctx context.Context, envelope WebhookEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		webhookSendTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: 1s, 2s.
			backoff := time.Duration(attempt) * time.Second
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()
				webhookSendTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
			webhookSendTotal.WithLabelValues("retry").Inc()
		}

		lastErr = ws.doPost(ctx, body)
		if lastErr == nil {
			return nil
		}

		// Only retry on transient errors (5xx, connection issues).
		if !isRetryable(lastErr) {
			webhookSendTotal.WithLabelValues("error").Inc()
			return lastErr
		}

		ws.logger.Debug("Webhook send transient failure, will retry",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	webhookSendTotal.WithLabelValues("error").Inc()
	return fmt.Errorf("webhook send failed after %d attempts: %w", maxRetries+1, lastErr)
}

// doPost executes a single HTTP POST request.
func (ws *WebhookSink) doPost(ctx context.Context, body []byte) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if ws.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+ws.authToken)
	}

	resp, err := ws.httpClient.Do(req)
	duration := time.Since(start).Seconds()
	if err != nil {
		webhookSendDuration.WithLabelValues("error").Observe(duration)
		return &webhookError{err: err, retryable: true}
	}
	defer func() {
		// Drain and close body to reuse connections.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		webhookSendTotal.WithLabelValues("success").Inc()
		webhookSendDuration.WithLabelValues("success").Observe(duration)
		return nil
	}

	webhookSendDuration.WithLabelValues("error").Observe(duration)
	return &webhookError{
		err:       fmt.Errorf("webhook returned HTTP %d", resp.StatusCode),
		retryable: resp.StatusCode >= 500,
	}
}

// webhookError wraps an error with a retryable flag.
type webhookError struct {
	err       error
	retryable bool
}

func (e *webhookError) Error() string { return e.err.Error() }
func (e *webhookError) Unwrap() error { return e.err }

// isRetryable returns true if the error is a transient failure worth retrying.
func isRetryable(err error) bool {
	var we *webhookError
	if errors.As(err, &we) {
		return we.retryable
	}
	// Unknown errors (connection refused, DNS, etc.) are retryable.
	return true
}

// RedactURL masks credentials in a URL for safe logging.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	redacted := u.Redacted()
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		r, err := url.Parse(redacted)
		if err != nil {
			return redacted
		}
		r.RawQuery = q.Encode()
		return r.String()
	}
	return redacted
}
