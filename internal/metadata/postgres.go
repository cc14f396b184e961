package metadata

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// PostgresCatalog implements Catalog using PostgreSQL.
type PostgresCatalog struct {
	pool *pgxpool.Pool
	cfg  config.CatalogConfig
}

// NewPostgresCatalog creates a new PostgreSQL job catalog.
func NewPostgresCatalog(cfg config.CatalogConfig) (*PostgresCatalog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	c := &PostgresCatalog{pool: pool, cfg: cfg}

	if err := c.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Println("[metadata] connected to PostgreSQL catalog")
	return c, nil
}

// initSchema creates the _meta_* tables if they don't exist.
func (c *PostgresCatalog) initSchema(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// RecordSubmission inserts a job row, refreshing it if the id was seen before.
func (c *PostgresCatalog) RecordSubmission(ctx context.Context, rec JobRecord) error {
	query := `
		INSERT INTO _meta_jobs (
			job_id, device, name, shots, batch_head, job_group, postprocess, submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id)
		DO UPDATE SET
			device = EXCLUDED.device,
			shots = EXCLUDED.shots,
			batch_head = EXCLUDED.batch_head,
			updated_at = NOW()
	`

	_, err := c.pool.Exec(ctx, query,
		rec.JobID,
		rec.Device,
		rec.Name,
		rec.Shots,
		nullable(rec.BatchHead),
		nullable(rec.Group),
		rec.PostProcess,
		rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}

	log.Printf("[metadata] recorded job %s on %s", rec.JobID, rec.Device)
	return nil
}

// RecordStatus updates the job's current status and appends to its history.
// Repeated observations of the same status are not appended again.
func (c *PostgresCatalog) RecordStatus(ctx context.Context, jobID, status string, cost *float64) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var prev string
	err = tx.QueryRow(ctx, `SELECT status FROM _meta_jobs WHERE job_id = $1 FOR UPDATE`, jobID).Scan(&prev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("record status for %s: job not in catalog", jobID)
		}
		return fmt.Errorf("get status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE _meta_jobs
		SET status = $2, cost = COALESCE($3, cost), updated_at = NOW()
		WHERE job_id = $1
	`, jobID, status, cost)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if prev != status {
		if _, err := tx.Exec(ctx, `INSERT INTO _meta_job_status (job_id, status) VALUES ($1, $2)`, jobID, status); err != nil {
			return fmt.Errorf("insert status history: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// PendingJobs returns ids of jobs not yet in a terminal status.
func (c *PostgresCatalog) PendingJobs(ctx context.Context, device string) ([]string, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT job_id FROM _meta_jobs
		WHERE device = $1 AND status NOT IN ('COMPLETED', 'ERROR', 'CANCELLED')
		ORDER BY submitted_at
	`, device)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases database connections.
func (c *PostgresCatalog) Close() error {
	c.pool.Close()
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
