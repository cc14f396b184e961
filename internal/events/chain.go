package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const headsFile = "event-chain-heads.json"

// ErrBrokenChain is returned by VerifyChain when an event does not link to
// its predecessor or its hash does not match its content.
var ErrBrokenChain = errors.New("event chain broken")

// HashEvent hashes the canonical JSON of evt with its own event_hash blanked.
func HashEvent(evt JobEvent) (string, error) {
	evt.Chain.EventHash = ""
	canonical, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// VerifyChain checks that events, in emission order for a single chain,
// each carry a correct hash and link to the one before.
func VerifyChain(events []JobEvent) error {
	prev := ""
	for i, evt := range events {
		if evt.Chain.PrevEventHash != prev {
			return fmt.Errorf("%w: event %d (%s) links to %q, want %q", ErrBrokenChain, i, evt.EventID, evt.Chain.PrevEventHash, prev)
		}
		want, err := HashEvent(evt)
		if err != nil {
			return err
		}
		if evt.Chain.EventHash != want {
			return fmt.Errorf("%w: event %d (%s) hash mismatch", ErrBrokenChain, i, evt.EventID)
		}
		prev = evt.Chain.EventHash
	}
	return nil
}

// chainHeads remembers the last event hash of each chain, persisted as JSON
// so chains continue across runs.
type chainHeads struct {
	mu    sync.Mutex
	path  string
	heads map[string]string
}

func openChainHeads(dir string) (*chainHeads, error) {
	if dir == "" {
		dir = "./state"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chain dir: %w", err)
	}

	c := &chainHeads{path: filepath.Join(dir, headsFile), heads: make(map[string]string)}
	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read chain heads: %w", err)
	default:
		if err := json.Unmarshal(data, &c.heads); err != nil {
			return nil, fmt.Errorf("parse chain heads %s: %w", c.path, err)
		}
	}
	return c, nil
}

// link stamps evt with a fresh id and the hashes that attach it to its
// chain. The head does not move until commit.
func (c *chainHeads) link(evt *JobEvent) error {
	c.mu.Lock()
	prev := c.heads[evt.Job.ChainKey()]
	c.mu.Unlock()

	evt.EventID = "job_evt_" + uuid.NewString()
	evt.Version = eventVersion
	return evt.SetChainHashes(prev)
}

// commit makes evt the head of its chain.
func (c *chainHeads) commit(evt *JobEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.heads[evt.Job.ChainKey()] = evt.Chain.EventHash
	data, err := json.MarshalIndent(c.heads, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
