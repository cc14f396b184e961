package journal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileManagerRecordLoadRemove(t *testing.T) {
	m, err := NewManager(Config{Enabled: true, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ctx := context.Background()
	now := time.Now().UTC()

	if err := m.Record(ctx, Entry{JobID: "b", Device: "H1-1", Shots: 10, SubmittedAt: now.Add(time.Second)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := m.Record(ctx, Entry{JobID: "a", Device: "H1-1", Shots: 5, SubmittedAt: now}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	entries, err := m.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 2 || entries[0].JobID != "a" || entries[1].JobID != "b" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if err := m.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := m.Remove(ctx, "a"); !errors.Is(err, ErrNotRecorded) {
		t.Errorf("expected ErrNotRecorded, got %v", err)
	}

	entries, _ = m.Load(ctx)
	if len(entries) != 1 || entries[0].Shots != 10 {
		t.Errorf("unexpected entries after remove: %+v", entries)
	}
}

func TestFileManagerPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, _ := NewManager(Config{Enabled: true, Dir: dir})
	if err := first.Record(ctx, Entry{JobID: "x", BatchHead: "h", PostProcess: "null"}); err != nil {
		t.Fatal(err)
	}

	second, _ := NewManager(Config{Enabled: true, Dir: dir})
	entries, err := second.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].BatchHead != "h" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestRecordRejectsEmptyJobID(t *testing.T) {
	m, _ := NewManager(Config{Enabled: true, Dir: t.TempDir()})
	if err := m.Record(context.Background(), Entry{}); err == nil {
		t.Error("expected error for empty job id")
	}
}

func TestNoopManager(t *testing.T) {
	m, err := NewManager(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Record(context.Background(), Entry{JobID: "x"}); err != nil {
		t.Error(err)
	}
	entries, err := m.Load(context.Background())
	if err != nil || len(entries) != 0 {
		t.Errorf("Load = %v, %v", entries, err)
	}
}
