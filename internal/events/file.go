package events

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// FileBackup saves events to local files for backup/audit.
type FileBackup struct {
	dir string
}

// NewFileBackup creates a new file backup handler.
func NewFileBackup(dir string) (*FileBackup, error) {
	if dir == "" {
		dir = "./event-backup"
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	return &FileBackup{dir: dir}, nil
}

// Save writes an event to a local JSON file named
// {device}_{job}_{kind}_{event}.json.
func (f *FileBackup) Save(evt *JobEvent) error {
	filename := fmt.Sprintf("%s_%s_%s_%s.json",
		sanitize(evt.Job.Device),
		sanitize(evt.Job.JobID),
		evt.Kind,
		evt.EventID,
	)

	path := filepath.Join(f.dir, filename)

	data, err := json.MarshalIndent(evt, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	log.Printf("[events] backed up to %s", path)
	return nil
}

func sanitize(s string) string {
	if s == "" {
		return "none"
	}
	out := []byte(s)
	for i, c := range out {
		if c == '/' || c == '\\' || c == ':' || c == ' ' {
			out[i] = '-'
		}
	}
	return string(out)
}

// FileOnlyEmitter writes events to files only (no HTTP).
// Used when no event endpoint is configured.
type FileOnlyEmitter struct {
	chain  *chainHeads
	backup *FileBackup
}

// NewFileOnlyEmitter creates an emitter that only writes to local files.
func NewFileOnlyEmitter(backupDir string) (*FileOnlyEmitter, error) {
	chain, err := openChainHeads(backupDir)
	if err != nil {
		return nil, err
	}

	backup, err := NewFileBackup(backupDir)
	if err != nil {
		return nil, fmt.Errorf("create file backup: %w", err)
	}

	return &FileOnlyEmitter{chain: chain, backup: backup}, nil
}

// Emit writes an event to local file only.
func (e *FileOnlyEmitter) Emit(evt *JobEvent) error {
	if err := e.chain.link(evt); err != nil {
		return err
	}
	if err := e.backup.Save(evt); err != nil {
		return err
	}
	if err := e.chain.commit(evt); err != nil {
		log.Printf("[events] warning: failed to update chain head: %v", err)
	}

	return nil
}

// Close releases resources.
func (e *FileOnlyEmitter) Close() error {
	return nil
}
