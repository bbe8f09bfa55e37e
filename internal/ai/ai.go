// Package ai defines the model-backed meal analyzer used by the stand-in
// analyzer service, and the parsing shared by its providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
)

// Analyzer identifies the foods in a meal photo and estimates nutrients.
type Analyzer interface {
	AnalyzeMeal(ctx context.Context, params AnalyzeMealParams) (*MealAnalysis, error)
}

// AnalyzeMealParams contains parameters for meal analysis
type AnalyzeMealParams struct {
	ImageData   []byte    // Raw image bytes
	ContentType string    // MIME type (e.g., "image/jpeg")
	AnalysisID  uuid.UUID // For tracking
	UserID      uuid.UUID // For tracking
}

// MealAnalysis is a provider's answer for one photo.
type MealAnalysis struct {
	MealName string
	Result   domain.AnalysisResult
	Usage    UsageInfo
}

// UsageInfo tracks model usage for monitoring
type UsageInfo struct {
	Model        string        // Model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// WithDefaults fills unset fields.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 1 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 60 * time.Second
	}
	return c
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAINoFood indicates the model found nothing edible in the image
	EAINoFood = errors.New("no food detected")

	// EAIContentPolicy indicates the image violates content policy
	EAIContentPolicy = errors.New("image violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIMalformed indicates the model answered with something unparseable
	EAIMalformed = errors.New("malformed model output")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// SupportedContentTypes are the image types every provider accepts.
var SupportedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateParams checks the image before it is sent to a model.
func ValidateParams(params AnalyzeMealParams, maxSize int) error {
	if len(params.ImageData) == 0 {
		return EAIInvalidImage
	}
	if maxSize > 0 && len(params.ImageData) > maxSize {
		return fmt.Errorf("%w: image size %d exceeds maximum %d", EAIInvalidImage, len(params.ImageData), maxSize)
	}
	if !SupportedContentTypes[params.ContentType] {
		return fmt.Errorf("%w: unsupported content type %q", EAIInvalidImage, params.ContentType)
	}
	return nil
}
