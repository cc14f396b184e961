// Package events emits a tamper-evident audit trail of job lifecycle changes.
package events

import (
	"time"
)

// Kind is the lifecycle transition an event records.
type Kind string

const (
	KindSubmitted       Kind = "submitted"
	KindCompleted       Kind = "completed"
	KindFailed          Kind = "failed"
	KindCancelled       Kind = "cancelled"
	KindCancelRequested Kind = "cancel_requested"
)

// JobEvent is the emitted audit record.
type JobEvent struct {
	Version   string    `json:"version"`
	Kind      Kind      `json:"kind"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`

	Job      JobInfo      `json:"job"`
	Producer ProducerInfo `json:"producer"`
	Chain    ChainInfo    `json:"chain"`
}

// JobInfo identifies the job being audited.
type JobInfo struct {
	JobID     string   `json:"job_id"`
	Device    string   `json:"device"`
	Status    string   `json:"status,omitempty"`
	Shots     int      `json:"shots,omitempty"`
	BatchHead string   `json:"batch_head,omitempty"`
	Cost      *float64 `json:"cost,omitempty"`
}

// ProducerInfo identifies the software that emitted the event.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`
}

// ChainInfo provides hash chaining for tamper-evident audit log.
type ChainInfo struct {
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
}

// ChainKey returns the chain the event belongs to. Each device keeps its
// own chain.
func (j JobInfo) ChainKey() string {
	return "device/" + j.Device
}

// SetChainHashes links the event to prevHash and computes its own hash.
func (e *JobEvent) SetChainHashes(prevHash string) error {
	e.Chain.PrevEventHash = prevHash
	hash, err := HashEvent(*e)
	if err != nil {
		return err
	}
	e.Chain.EventHash = hash
	return nil
}
