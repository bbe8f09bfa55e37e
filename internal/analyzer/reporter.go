package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

// errPermanent marks callback responses that retrying cannot fix.
var errPermanent = errors.New("callback rejected")

// ReporterConfig configures callback delivery.
type ReporterConfig struct {
	CallbackURL    string
	Secret         string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Reporter posts analysis outcomes back to the meal analysis service.
type Reporter struct {
	config ReporterConfig
	client *http.Client
	logger *slog.Logger
}

// NewReporter creates a Reporter.
func NewReporter(config ReporterConfig, logger *slog.Logger) (*Reporter, error) {
	if config.CallbackURL == "" {
		return nil, fmt.Errorf("callback URL is required")
	}
	if config.Secret == "" {
		return nil, fmt.Errorf("callback secret is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 5
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = time.Second
	}

	return &Reporter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}, nil
}

// Report delivers payload. It retries network errors and 5xx responses
// (the service answers 503 when its store is unavailable) and gives up on
// any other non-2xx status.
func (r *Reporter) Report(ctx context.Context, payload domain.CallbackPayload) (*domain.CallbackAck, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode callback: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		ack, err := r.post(ctx, body)
		if err == nil {
			return ack, nil
		}
		lastErr = err

		if errors.Is(err, errPermanent) || attempt >= r.config.MaxRetries {
			break
		}

		delay := r.config.RetryBaseDelay * time.Duration(1<<(attempt-1))
		r.logger.Info("Retrying callback", "analysis_id", payload.AnalysisID, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *Reporter) post(ctx context.Context, body []byte) (*domain.CallbackAck, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.config.Secret)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var ack domain.CallbackAck
		if err := json.Unmarshal(data, &ack); err != nil {
			// Delivered; the body is informational.
			return &domain.CallbackAck{Success: true}, nil
		}
		return &ack, nil
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("callback status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	default:
		return nil, fmt.Errorf("%w: status %d: %s", errPermanent, resp.StatusCode, bytes.TrimSpace(data))
	}
}
