// Package journal records the handles a backend has issued so pending jobs
// can be listed and resumed after a restart.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotRecorded is returned when a job is absent from the journal.
	ErrNotRecorded = errors.New("job not recorded")
)

// Entry is one issued handle.
type Entry struct {
	JobID       string    `json:"job_id"`
	PostProcess string    `json:"postprocess"`
	Device      string    `json:"device"`
	BatchHead   string    `json:"batch_head,omitempty"`
	Shots       int       `json:"shots"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Manager handles journal persistence and retrieval.
type Manager interface {
	// Record adds or replaces the entry for e.JobID.
	Record(ctx context.Context, e Entry) error

	// Load returns all entries ordered by submission time.
	Load(ctx context.Context) ([]Entry, error)

	// Remove drops the entry for jobID.
	Remove(ctx context.Context, jobID string) error
}

// Config configures the journal manager.
type Config struct {
	Enabled bool
	Dir     string // Directory for the journal file
}

// NewManager creates a journal manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory %s: %w", cfg.Dir, err)
	}

	return &fileManager{path: filepath.Join(cfg.Dir, "journal.json")}, nil
}

// fileManager keeps the journal in a single JSON file.
type fileManager struct {
	mu   sync.Mutex
	path string
}

func (m *fileManager) read() (map[string]Entry, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("read journal file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse journal file: %w", err)
	}
	out := make(map[string]Entry, len(entries))
	for _, e := range entries {
		out[e.JobID] = e
	}
	return out, nil
}

func (m *fileManager) write(entries map[string]Entry) error {
	list := sorted(entries)
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}

	// Write atomically
	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write journal temp file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename journal file: %w", err)
	}

	return nil
}

func (m *fileManager) Record(ctx context.Context, e Entry) error {
	if e.JobID == "" {
		return fmt.Errorf("record journal entry: empty job id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		return err
	}
	entries[e.JobID] = e
	return m.write(entries)
}

func (m *fileManager) Load(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		return nil, err
	}
	return sorted(entries), nil
}

func (m *fileManager) Remove(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.read()
	if err != nil {
		return err
	}
	if _, ok := entries[jobID]; !ok {
		return fmt.Errorf("remove %s: %w", jobID, ErrNotRecorded)
	}
	delete(entries, jobID)
	return m.write(entries)
}

func sorted(entries map[string]Entry) []Entry {
	list := make([]Entry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].SubmittedAt.Equal(list[j].SubmittedAt) {
			return list[i].JobID < list[j].JobID
		}
		return list[i].SubmittedAt.Before(list[j].SubmittedAt)
	})
	return list
}

// noopManager is a no-op journal for when journaling is disabled.
type noopManager struct{}

func (m *noopManager) Record(ctx context.Context, e Entry) error {
	return nil
}

func (m *noopManager) Load(ctx context.Context) ([]Entry, error) {
	return nil, nil
}

func (m *noopManager) Remove(ctx context.Context, jobID string) error {
	return nil
}
