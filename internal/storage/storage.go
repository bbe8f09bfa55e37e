// Package storage holds submitted meal images until the analyzer has
// received them.
//
// Implementations:
// - LocalStorage: File system storage for development
// - S3Storage: S3-compatible object storage (Cloudflare R2, MinIO, AWS S3)
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the object operations the analysis pipeline needs.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at key. Returns ErrKeyExists if the key is taken and
	// opts.Overwrite is false, ErrTooLarge if data exceeds opts.MaxSize.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error

	// Get retrieves the data at key. The caller must close the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type of the object. Sniffed when empty.
	ContentType string

	// MaxSize is the maximum allowed size in bytes. 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

// Config selects and configures a storage provider.
type Config struct {
	Provider string // ProviderLocal or ProviderS3
	Local    LocalConfig
	S3       S3Config
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	BasePath string
}

// S3Config holds configuration for S3-compatible object storage.
type S3Config struct {
	// AccountID is a Cloudflare account ID. When Endpoint is empty the R2
	// endpoint for this account is used.
	AccountID string

	// Endpoint overrides the service URL (MinIO, LocalStack, tests).
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region is required by the SDK. R2 accepts "auto". Default: "auto"
	Region string

	// UsePathStyle addresses buckets as /{bucket}/{key} instead of a
	// bucket subdomain.
	UsePathStyle bool
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderS3 identifies S3-compatible storage, including Cloudflare R2.
	ProviderS3 = "s3"

	// ProviderR2 is accepted as an alias of ProviderS3.
	ProviderR2 = "r2"
)

// New builds the storage provider named by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case "", ProviderLocal:
		return NewLocalStorage(cfg.Local, logger)
	case ProviderS3, ProviderR2:
		return NewS3Storage(cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// =============================================================================
// Key Generation Helpers
// =============================================================================

// AnalysisImageKey returns the storage key of an analysis's normalized image.
// Format: analyses/{analysisID}/image.jpg
func AnalysisImageKey(analysisID uuid.UUID, contentType string) string {
	return fmt.Sprintf("analyses/%s/image%s", analysisID, extensionForContentType(contentType))
}

// ReadAll fetches the object at key, failing with ErrTooLarge when it
// exceeds maxSize (0 for no limit).
func ReadAll(ctx context.Context, s Storage, key string, maxSize int64) ([]byte, ObjectInfo, error) {
	rc, info, err := s.Get(ctx, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if maxSize > 0 {
		r = io.LimitReader(rc, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: fmt.Errorf("failed to read object: %w", err)}
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, ObjectInfo{}, &StorageError{Op: "Get", Key: key, Err: ErrTooLarge}
	}
	return data, info, nil
}
