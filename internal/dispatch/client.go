// Package dispatch delivers submitted meal images to the external analyzer
// webhook.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/metrics"
	"github.com/google/uuid"
)

const (
	// DefaultUserAgent identifies this service to the analyzer.
	DefaultUserAgent = "Camera-App/1.0"

	// Source is sent in the "source" form field.
	Source = "camera-app"

	// maxErrorBody bounds how much of an error response is kept for logs.
	maxErrorBody = 512
)

// Form field names of the dispatch request.
const (
	FieldImage      = "image"
	FieldAnalysisID = "analysisId"
	FieldUserID     = "userId"
	FieldTimestamp  = "timestamp"
	FieldSource     = "source"
)

// Config contains configuration for the webhook client
type Config struct {
	WebhookURL     string
	UserAgent      string
	Timeout        time.Duration // Per-request timeout
	MaxRetries     int           // Attempts per Send, including the first
	RetryBaseDelay time.Duration // Base delay for exponential backoff
}

// Request is one analysis handed to the analyzer.
type Request struct {
	AnalysisID  uuid.UUID
	UserID      uuid.UUID
	Image       []byte
	Filename    string
	ContentType string
	Timestamp   time.Time
}

// Client posts analysis requests to the analyzer webhook.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a webhook client.
func New(config Config, logger *slog.Logger) (*Client, error) {
	if config.WebhookURL == "" {
		return nil, fmt.Errorf("analyzer webhook URL is required")
	}

	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 1 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

// Send delivers req to the analyzer. It returns nil once the analyzer
// acknowledges with any 2xx status; the analysis result arrives later
// through the callback.
func (c *Client) Send(ctx context.Context, req Request) error {
	body, contentType, err := encodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode dispatch request: %w", err)
	}

	return c.executeWithRetry(ctx, body, contentType)
}

// encodeRequest builds the multipart body once so every retry resends the
// same bytes.
func encodeRequest(req Request) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "meal.jpg"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldImage, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fields := [][2]string{
		{FieldAnalysisID, req.AnalysisID.String()},
		{FieldUserID, req.UserID.String()},
		{FieldTimestamp, ts.UTC().Format(time.RFC3339)},
		{FieldSource, Source},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// executeWithRetry posts the body with exponential backoff retry
func (c *Client) executeWithRetry(ctx context.Context, body []byte, contentType string) error {
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		start := time.Now()
		err := c.executeRequest(ctx, body, contentType)
		metrics.DispatchObserved(err == nil, time.Since(start))
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt >= c.config.MaxRetries {
			break
		}

		// Exponential: base * 2^(attempt-1)
		delay := c.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
		c.logger.Info("Retrying analyzer dispatch", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// executeRequest performs a single POST
func (c *Client) executeRequest(ctx context.Context, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %v", EDispatchTimeout, err)
		}
		return fmt.Errorf("%w: %v", EDispatchUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return mapHTTPError(resp.StatusCode, snippet)
}

// mapHTTPError maps HTTP status codes to dispatch errors
func mapHTTPError(statusCode int, body []byte) error {
	var sentinel error
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		sentinel = EDispatchUnauthorized
	case statusCode == http.StatusTooManyRequests:
		sentinel = EDispatchRateLimit
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		sentinel = EDispatchTimeout
	case statusCode >= 500:
		sentinel = EDispatchUnavailable
	default:
		sentinel = EDispatchRejected
	}
	return &StatusError{
		StatusCode: statusCode,
		Body:       strings.TrimSpace(string(body)),
		Err:        sentinel,
	}
}
