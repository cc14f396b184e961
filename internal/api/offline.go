package api

import (
	"context"
	"errors"
	"sync"
)

// ErrOffline is returned for operations an offline session cannot answer.
var ErrOffline = errors.New("offline session has no remote jobs")

// Offline is a session that never touches the network. It serves a fixed
// device listing and records every submitted job body.
type Offline struct {
	mu       sync.Mutex
	machines []map[string]any
	jobs     []map[string]any
}

// NewOffline creates an offline session. A nil listing uses DefaultMachines.
func NewOffline(machines []map[string]any) *Offline {
	if machines == nil {
		machines = DefaultMachines()
	}
	return &Offline{machines: machines}
}

// DefaultMachines is the listing served by offline sessions.
func DefaultMachines() []map[string]any {
	hardware := func(name string, syntaxChecker string) map[string]any {
		return map[string]any{
			"name":                  name,
			"n_qubits":              float64(20),
			"gateset":               []any{"RZZ", "Riswap", "TK2"},
			"n_classical_registers": float64(4000),
			"n_shots":               float64(10000),
			"system_type":           "hardware",
			"wasm":                  true,
			"batching":              true,
			"syntax_checker":        syntaxChecker,
		}
	}
	checker := func(name string) map[string]any {
		return map[string]any{
			"name":        name,
			"n_qubits":    float64(20),
			"gateset":     []any{"RZZ", "Riswap", "TK2"},
			"n_shots":     float64(10000),
			"system_type": "syntax checker",
			"wasm":        true,
		}
	}
	return []map[string]any{
		hardware("H1-1", "H1-1SC"),
		hardware("H1-2", "H1-2SC"),
		checker("H1-1SC"),
		checker("H1-2SC"),
		{
			"name":        "H1-1E",
			"n_qubits":    float64(20),
			"gateset":     []any{"RZZ", "Riswap", "TK2"},
			"n_shots":     float64(10000),
			"system_type": "emulator",
			"wasm":        true,
			"batching":    true,
		},
	}
}

// Jobs returns the job bodies submitted so far.
func (o *Offline) Jobs() []map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]map[string]any(nil), o.jobs...)
}

func (o *Offline) Login(context.Context) error { return nil }

func (o *Offline) Logout() {}

func (o *Offline) ListMachines(context.Context) ([]map[string]any, error) {
	return o.machines, nil
}

func (o *Offline) MachineState(_ context.Context, name string) (string, error) {
	for _, m := range o.machines {
		if m["name"] == name {
			return "online", nil
		}
	}
	return "", ErrOffline
}

// SubmitJob records body and returns an empty job id.
func (o *Offline) SubmitJob(_ context.Context, body map[string]any) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, body)
	return "", nil
}

// JobStatus reports every job as queued.
func (o *Offline) JobStatus(_ context.Context, jobID string) (*JobResponse, error) {
	return &JobResponse{Job: jobID, Status: StatusQueued}, nil
}

func (o *Offline) RetrieveJob(context.Context, string, WaitOptions) (*JobResponse, error) {
	return nil, ErrOffline
}

func (o *Offline) CancelJob(context.Context, string) error { return nil }
