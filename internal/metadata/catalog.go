// Package metadata records submitted jobs and their status transitions in
// a queryable catalog.
package metadata

import (
	"context"
	"time"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
)

// Catalog persists job records.
type Catalog interface {
	RecordSubmission(ctx context.Context, rec JobRecord) error
	RecordStatus(ctx context.Context, jobID, status string, cost *float64) error
	Close() error
}

// JobRecord describes one submitted job.
type JobRecord struct {
	JobID       string
	Device      string
	Name        string
	Shots       int
	BatchHead   string
	Group       string
	PostProcess bool
	SubmittedAt time.Time
}

// NewCatalog returns a Postgres catalog when a DSN is configured and a no-op
// catalog otherwise.
func NewCatalog(cfg config.CatalogConfig) (Catalog, error) {
	if cfg.PostgresDSN == "" {
		return NoopCatalog{}, nil
	}
	return NewPostgresCatalog(cfg)
}

// NoopCatalog discards all records.
type NoopCatalog struct{}

func (NoopCatalog) RecordSubmission(context.Context, JobRecord) error { return nil }

func (NoopCatalog) RecordStatus(context.Context, string, string, *float64) error { return nil }

func (NoopCatalog) Close() error { return nil }
