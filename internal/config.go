package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the configuration of the API server (cmd/server).
type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Identity provider tokens
	JWTSecret   string
	JWTAudience string // Optional; skips the aud check when empty

	// Analyzer callback authentication. One of the two is required; the
	// bcrypt hash wins when both are set.
	CallbackSecret     string
	CallbackSecretHash string

	// Dispatch to the external analyzer
	AnalyzerWebhookURL     string
	AnalyzerTimeout        time.Duration // Per HTTP attempt
	DispatchMaxRetries     int           // HTTP attempts per job run
	DispatchRetryBaseDelay time.Duration
	DispatchMaxAttempts    int  // Job runs before the job fails for good
	DispatchFailOnError    bool // Mark the analysis failed when dispatch fails for good

	// Quota
	FreeTierLimit int64

	// Uploads
	MaxUploadSize     int64
	ImageMaxDimension int

	// Storage Configuration
	StorageProvider  string // "local" or "r2"
	LocalStoragePath string // Base directory for local file storage

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Endpoint        string // Optional; S3-compatible endpoint override

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Result cache (optional)
	RedisURL       string
	RedisPassword  string
	ResultCacheTTL time.Duration

	// Rate limits, per key per minute
	SubmitRatePerMinute   int
	CallbackRatePerMinute int

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsProduction reports whether HTTPS-only behavior should be enabled.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", ""),

		CallbackSecret:     getEnv("CALLBACK_SECRET", ""),
		CallbackSecretHash: getEnv("CALLBACK_SECRET_HASH", ""),

		AnalyzerWebhookURL:     getEnv("ANALYZER_WEBHOOK_URL", ""),
		AnalyzerTimeout:        getEnvDuration("ANALYZER_TIMEOUT", 30*time.Second),
		DispatchMaxRetries:     getEnvInt("DISPATCH_MAX_RETRIES", 3),
		DispatchRetryBaseDelay: getEnvDuration("DISPATCH_RETRY_BASE_DELAY", 1*time.Second),
		DispatchMaxAttempts:    getEnvInt("DISPATCH_MAX_ATTEMPTS", 3),
		DispatchFailOnError:    getEnvBool("DISPATCH_FAIL_ON_ERROR", false),

		FreeTierLimit: int64(getEnvInt("FREE_TIER_LIMIT", 5)),

		MaxUploadSize:     int64(getEnvInt("MAX_UPLOAD_SIZE", 10*1024*1024)),
		ImageMaxDimension: getEnvInt("IMAGE_MAX_DIMENSION", 1568),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2Endpoint:        getEnv("R2_ENDPOINT", ""),

		// Worker defaults
		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 1*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),

		RedisURL:       getEnv("REDIS_URL", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		ResultCacheTTL: getEnvDuration("RESULT_CACHE_TTL", 1*time.Hour),

		SubmitRatePerMinute:   getEnvInt("SUBMIT_RATE_PER_MINUTE", 10),
		CallbackRatePerMinute: getEnvInt("CALLBACK_RATE_PER_MINUTE", 600),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.CallbackSecret == "" && cfg.CallbackSecretHash == "" {
		return nil, fmt.Errorf("CALLBACK_SECRET or CALLBACK_SECRET_HASH is required")
	}
	if cfg.WorkerEnabled && cfg.AnalyzerWebhookURL == "" {
		return nil, fmt.Errorf("ANALYZER_WEBHOOK_URL is required when WORKER_ENABLED is true")
	}

	if cfg.FreeTierLimit < 1 {
		return nil, fmt.Errorf("FREE_TIER_LIMIT must be at least 1, got %d", cfg.FreeTierLimit)
	}
	if cfg.DispatchMaxAttempts < 1 {
		return nil, fmt.Errorf("DISPATCH_MAX_ATTEMPTS must be at least 1, got %d", cfg.DispatchMaxAttempts)
	}
	if cfg.SubmitRatePerMinute < 1 || cfg.CallbackRatePerMinute < 1 {
		return nil, fmt.Errorf("rate limits must be at least 1 per minute")
	}

	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" && cfg.R2Endpoint == "" {
			return nil, fmt.Errorf("R2_ACCOUNT_ID or R2_ENDPOINT is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return nil, fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return nil, fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return nil, fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	return cfg, nil
}

// AnalyzerConfig is the configuration of the stand-in analyzer (cmd/analyzer).
type AnalyzerConfig struct {
	Env      string
	Port     int
	LogLevel string

	// Where results are reported
	CallbackURL    string
	CallbackSecret string

	Concurrency     int
	MaxImageSize    int64
	AnalysisTimeout time.Duration

	// AI Provider Configuration
	AIProvider       string // "mock", "anthropic" or "vertex"
	MockDelay        time.Duration
	AnthropicAPIKey  string
	AnthropicModel   string
	VertexProjectID  string
	VertexLocation   string
	VertexModel      string
	GoogleCredsFile  string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration
}

func NewAnalyzerConfig() (*AnalyzerConfig, error) {
	_ = godotenv.Load()

	cfg := &AnalyzerConfig{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("ANALYZER_PORT", 8090),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		CallbackURL:    getEnv("CALLBACK_URL", "http://localhost:8080/api/webhook/analysis-callback"),
		CallbackSecret: getEnv("CALLBACK_SECRET", ""),

		Concurrency:     getEnvInt("ANALYZER_CONCURRENCY", 4),
		MaxImageSize:    int64(getEnvInt("MAX_UPLOAD_SIZE", 10*1024*1024)),
		AnalysisTimeout: getEnvDuration("ANALYSIS_TIMEOUT", 2*time.Minute),

		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		MockDelay:        getEnvDuration("MOCK_DELAY", 3*time.Second),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		VertexProjectID:  getEnv("VERTEX_PROJECT_ID", ""),
		VertexLocation:   getEnv("VERTEX_LOCATION", "us-central1"),
		VertexModel:      getEnv("VERTEX_MODEL", "gemini-1.5-flash-002"),
		GoogleCredsFile:  getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),
	}

	if cfg.CallbackSecret == "" {
		return nil, fmt.Errorf("CALLBACK_SECRET is required")
	}

	switch cfg.AIProvider {
	case "mock":
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	case "vertex":
		if cfg.VertexProjectID == "" {
			return nil, fmt.Errorf("VERTEX_PROJECT_ID is required when AI_PROVIDER is 'vertex'")
		}
	default:
		return nil, fmt.Errorf("AI_PROVIDER must be 'mock', 'anthropic' or 'vertex', got: %s", cfg.AIProvider)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
