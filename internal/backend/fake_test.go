package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/api"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
)

// fakeSession is an in-memory job service. Jobs become known to the
// service only once their status has been queried, which lets tests
// observe the batch head ordering requirement.
type fakeSession struct {
	mu sync.Mutex

	machines  []map[string]any
	submitted []map[string]any
	calls     []string
	nextID    int
	logins    int

	known     map[string]bool
	status    map[string]*api.JobResponse
	statusErr []error // returned by JobStatus, one per call, before normal answers

	// autoComplete finishes jobs for the named machines at submission,
	// reporting the given raw cost.
	autoComplete map[string]string

	submitErr error
	cancelErr error
	loginErr  error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		machines: []map[string]any{
			{"name": "H1-1", "n_qubits": float64(4), "gateset": []any{"RZZ"}, "n_shots": float64(100),
				"batching": true, "wasm": true, "syntax_checker": "H1-1SC"},
			{"name": "H1-1SC", "n_qubits": float64(4), "gateset": []any{"RZZ"}},
			{"name": "H2-1", "n_qubits": float64(4)},
		},
		known:  make(map[string]bool),
		status: make(map[string]*api.JobResponse),
	}
}

func (f *fakeSession) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeSession) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSession) Login(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("login")
	f.logins++
	return f.loginErr
}

func (f *fakeSession) Logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("logout")
}

func (f *fakeSession) ListMachines(context.Context) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	return f.machines, nil
}

func (f *fakeSession) MachineState(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("state " + name)
	return "online", nil
}

func (f *fakeSession) SubmitJob(_ context.Context, body map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("submit")
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if head, ok := body[batchExecKey].(string); ok && !f.known[head] {
		return "", &api.RemoteError{StatusCode: 400, Message: "batch " + head + " not found"}
	}
	f.submitted = append(f.submitted, body)
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	f.status[id] = &api.JobResponse{Job: id, Status: api.StatusQueued}
	if cost, ok := f.autoComplete[body["machine"].(string)]; ok {
		f.status[id] = &api.JobResponse{
			Job:     id,
			Status:  api.StatusCompleted,
			Results: map[string][]string{"c": {"00"}},
			Cost:    []byte(cost),
		}
	}
	return id, nil
}

func (f *fakeSession) JobStatus(_ context.Context, jobID string) (*api.JobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("status " + jobID)
	if len(f.statusErr) > 0 {
		err := f.statusErr[0]
		f.statusErr = f.statusErr[1:]
		return nil, err
	}
	resp, ok := f.status[jobID]
	if !ok {
		return nil, &api.RemoteError{StatusCode: 404, Message: "no such job"}
	}
	f.known[jobID] = true
	cp := *resp
	return &cp, nil
}

func (f *fakeSession) RetrieveJob(_ context.Context, jobID string, _ api.WaitOptions) (*api.JobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("retrieve " + jobID)
	resp, ok := f.status[jobID]
	if !ok {
		return nil, &api.RemoteError{StatusCode: 404, Message: "no such job"}
	}
	if !api.Terminal(resp.Status) {
		return nil, api.ErrWaitTimeout
	}
	cp := *resp
	return &cp, nil
}

func (f *fakeSession) CancelJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel " + jobID)
	return f.cancelErr
}

// complete marks a job finished with the given register strings.
func (f *fakeSession) complete(jobID string, res map[string][]string, cost string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := &api.JobResponse{Job: jobID, Status: api.StatusCompleted, Results: res}
	if cost != "" {
		resp.Cost = []byte(cost)
	}
	f.status[jobID] = resp
}

func (f *fakeSession) setStatus(jobID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[jobID] = &api.JobResponse{Job: jobID, Status: status, Error: []byte(`"boom"`)}
}

func (f *fakeSession) lastBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) == 0 {
		return nil
	}
	return f.submitted[len(f.submitted)-1]
}

type textEncoder struct{}

func (textEncoder) Encode(c *circuit.Circuit) (string, error) {
	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	for _, op := range c.Ops {
		sb.WriteString(string(op.Type))
		sb.WriteString(";\n")
	}
	return sb.String(), nil
}

// splitPreparer returns the circuit unchanged and a post-processing
// circuit over its bits.
type splitPreparer struct{}

func (splitPreparer) Prepare(c *circuit.Circuit) (*circuit.Circuit, *circuit.Circuit, error) {
	return c, circuit.New("post", 0, c.NBits()), nil
}

var errFailingEncoder = errors.New("encode failed")

type failingEncoder struct{}

func (failingEncoder) Encode(*circuit.Circuit) (string, error) { return "", errFailingEncoder }

// nativeCircuit builds a circuit using only native gates.
func nativeCircuit(t *testing.T, name string, qubits, bits int) *circuit.Circuit {
	t.Helper()
	c := circuit.New(name, qubits, bits)
	for _, q := range c.Qubits {
		require.NoError(t, c.Add(circuit.Op{Type: circuit.PhasedX, Qubits: []circuit.Qubit{q}, Params: []string{"0.5", "0"}}))
	}
	if qubits >= 2 {
		require.NoError(t, c.Add(circuit.Op{Type: circuit.ZZMax, Qubits: c.Qubits[:2]}))
	}
	require.NoError(t, c.MeasureAll())
	return c
}

func newTestBackend(t *testing.T, s *fakeSession, deviceName string, opts ...Option) *Backend {
	t.Helper()
	opts = append([]Option{WithEncoder(textEncoder{}), WithPreparer(splitPreparer{})}, opts...)
	return New(s, Config{Device: deviceName, Options: map[string]any{"tket": "instance", "instance-only": 1}}, opts...)
}
