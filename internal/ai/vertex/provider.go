// Package vertex implements ai.Analyzer with Gemini on Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bjhnbjh/vibecoding-camera/internal/ai"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-1.5-flash-002"

	// DefaultLocation is the Vertex AI region used when none is configured.
	DefaultLocation = "us-central1"

	// MaxImageSize is the inline data limit for one request.
	MaxImageSize = 7 * 1024 * 1024
)

// Config contains configuration for the Vertex AI provider
type Config struct {
	ProjectID       string
	Location        string
	Model           string
	CredentialsFile string // Optional; application default credentials otherwise
	ProviderConfig  ai.ProviderConfig
}

// generator is the part of *genai.GenerativeModel the provider calls.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Provider implements ai.Analyzer using Vertex AI
type Provider struct {
	config Config
	client *genai.Client
	model  generator
	logger *slog.Logger
}

var _ ai.Analyzer = (*Provider)(nil)

// New connects to Vertex AI. Close releases the client.
func New(ctx context.Context, config Config, logger *slog.Logger) (*Provider, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("vertex project id is required")
	}
	if config.Location == "" {
		config.Location = DefaultLocation
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	config.ProviderConfig = config.ProviderConfig.WithDefaults()

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, config.ProjectID, config.Location, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}

	model := client.GenerativeModel(config.Model)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	return &Provider{config: config, client: client, model: model, logger: logger}, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// AnalyzeMeal sends the photo with the meal prompt and parses Gemini's answer.
func (p *Provider) AnalyzeMeal(ctx context.Context, params ai.AnalyzeMealParams) (*ai.MealAnalysis, error) {
	start := time.Now()

	if err := ai.ValidateParams(params, MaxImageSize); err != nil {
		return nil, ai.WrapError("analyze meal", err)
	}

	resp, err := p.generateWithRetry(ctx, params)
	if err != nil {
		return nil, ai.WrapError("generate content", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, ai.WrapError("read response", err)
	}

	result, err := ai.ParseModelOutput(text)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	result.Usage = ai.UsageInfo{Model: p.config.Model, Duration: time.Since(start)}
	if u := resp.UsageMetadata; u != nil {
		result.Usage.InputTokens = int(u.PromptTokenCount)
		result.Usage.OutputTokens = int(u.CandidatesTokenCount)
	}

	p.logger.Info("meal analyzed",
		"analysis_id", params.AnalysisID,
		"model", result.Usage.Model,
		"items", len(result.Result.Items),
		"duration_ms", result.Usage.Duration.Milliseconds(),
	)
	return result, nil
}

func (p *Provider) generateWithRetry(ctx context.Context, params ai.AnalyzeMealParams) (*genai.GenerateContentResponse, error) {
	image := genai.Blob{MIMEType: params.ContentType, Data: params.ImageData}
	cfg := p.config.ProviderConfig

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		resp, err := p.model.GenerateContent(callCtx, image, genai.Text(ai.MealPrompt))
		cancel()
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = mapError(err)
		if !ai.IsRetryable(lastErr) || attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ai.EAIMalformed)
	}
	c := resp.Candidates[0]
	if c.FinishReason == genai.FinishReasonSafety {
		return "", ai.EAIContentPolicy
	}
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty candidate", ai.EAIMalformed)
	}

	var b strings.Builder
	for _, part := range c.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// mapError maps gRPC status codes to ai sentinel errors.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ai.EAITimeout, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ai.EAIRateLimit, st.Message())
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return fmt.Errorf("%w: %s", ai.EAIUnavailable, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ai.EAITimeout, st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ai.EAIUnauthorized, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ai.EAIInvalidImage, st.Message())
	}
	return err
}
