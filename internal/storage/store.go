package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
)

// ErrNotFound is returned by Get for keys that were never written.
var ErrNotFound = errors.New("object not found")

// ResultStore persists encoded job results so they survive process restarts.
type ResultStore interface {
	// Put writes data under key, replacing any previous value atomically.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the value under key, or returns ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists checks if key has been written.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// ResultKey returns the object key for a job's result.
func ResultKey(prefix, jobID string) string {
	return path.Join(prefix, "results", jobID+".json.zst")
}

// StorageConfig configures the storage backend.
type StorageConfig struct {
	Backend string // "local" | "gcs" | "s3" | "mem"

	// Local filesystem
	LocalDir string

	// GCS
	GCSBucket string

	// S3 (also works for B2, R2, MinIO)
	S3Bucket   string
	S3Endpoint string // custom endpoint for B2/MinIO/R2
	S3Region   string

	// Common
	Prefix string // path prefix within bucket or local dir
}

// NewResultStore creates a storage backend based on configuration.
func NewResultStore(cfg StorageConfig) (ResultStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCSBucket required for gcs backend")
		}
		return NewGCSStore(context.Background(), cfg.GCSBucket)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3Bucket required for s3 backend")
		}
		return NewS3Store(context.Background(), cfg.S3Bucket, cfg.S3Endpoint, cfg.S3Region)
	case "mem":
		return NewMemStore(context.Background())
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
