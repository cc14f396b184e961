package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
)

// HTTPEmitter sends events to an HTTP endpoint.
type HTTPEmitter struct {
	cfg        config.EventsConfig
	client     *http.Client
	chain      *chainHeads
	backup     *FileBackup
	retries    int
	retryDelay time.Duration
}

// NewHTTPEmitter creates a new HTTP emitter.
func NewHTTPEmitter(cfg config.EventsConfig) (*HTTPEmitter, error) {
	chain, err := openChainHeads(cfg.BackupDir)
	if err != nil {
		return nil, err
	}

	backup, err := NewFileBackup(cfg.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("create file backup: %w", err)
	}

	return &HTTPEmitter{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		chain:      chain,
		backup:     backup,
		retries:    3,
		retryDelay: time.Second,
	}, nil
}

// Emit sends an event to the configured endpoint.
func (e *HTTPEmitter) Emit(ctx context.Context, evt *JobEvent) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if err := e.chain.link(evt); err != nil {
		return err
	}
	log.Printf("[events] emitting %s for job %s on %s", evt.Kind, evt.Job.JobID, evt.Job.Device)

	// Backup precedes delivery.
	if err := e.backup.Save(evt); err != nil {
		log.Printf("[events] warning: backup failed: %v", err)
	}
	if err := e.postWithRetry(ctx, evt); err != nil {
		return fmt.Errorf("emit %s: %w", evt.Kind, err)
	}
	if err := e.chain.commit(evt); err != nil {
		log.Printf("[events] warning: failed to update chain head: %v", err)
	}

	return nil
}

// postWithRetry sends the event to the endpoint with retries.
func (e *HTTPEmitter) postWithRetry(ctx context.Context, evt *JobEvent) error {
	var lastErr error
	delay := e.retryDelay

	for attempt := 1; attempt <= e.retries; attempt++ {
		err := e.post(ctx, evt)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < e.retries {
			log.Printf("[events] attempt %d/%d failed: %v, retrying in %v", attempt, e.retries, err, delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", e.retries, lastErr)
}

// post sends a single POST request to the endpoint.
func (e *HTTPEmitter) post(ctx context.Context, evt *JobEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
}

// Close releases resources.
func (e *HTTPEmitter) Close() error {
	return nil
}
