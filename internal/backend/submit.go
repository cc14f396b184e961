package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/device"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/events"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/journal"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/logging"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/metadata"
)

// Wire constants of the submission body.
const (
	Language = "OPENQASM 2.0"
	Priority = "normal"
)

// Request body keys used for batching.
const (
	batchExecKey = "batch-exec"
	batchEndKey  = "batch-end"
)

// SubmitOptions shape one job submission.
type SubmitOptions struct {
	// Name defaults to the instance label.
	Name string
	// Noiseless turns off the simulator's error model.
	Noiseless bool
	// Group overrides the instance group.
	Group string
	// Wasm is a linked classical module, sent base64 encoded.
	Wasm []byte
	// CompilationPass is forwarded as options.tket.compilation-pass.
	CompilationPass any
	NoOpt           bool
	// Options are merged into the body's "options" object after the
	// instance options.
	Options map[string]any
	// RequestOptions are merged into the top level of the body last.
	RequestOptions map[string]any
}

// RunOptions shape a ProcessCircuits call.
type RunOptions struct {
	SubmitOptions
	// PostProcess splits each circuit with the configured Preparer and
	// keeps the classical part in the handle.
	PostProcess bool
	// SkipValidation submits without checking the device predicates.
	SkipValidation bool
}

// batchRef describes how a submission links into a batch.
type batchRef struct {
	head  string
	start bool
}

// SubmitProgram posts an already serialized program and returns its handle.
// In debug mode nothing is sent and a marker handle with no result bits is
// returned.
func (b *Backend) SubmitProgram(ctx context.Context, program string, shots int, opts SubmitOptions) (Handle, error) {
	d, err := b.DeviceInfo(ctx)
	if err != nil {
		return Handle{}, err
	}
	if err := checkShots(d, shots); err != nil {
		return Handle{}, err
	}
	if b.cfg.MachineDebug {
		return DebugHandle(0, shots, 0, noPostProcess), nil
	}
	jobID, err := b.submit(ctx, d, program, shots, opts)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{JobID: jobID, PostProcess: noPostProcess}
	b.issue(ctx, h, b.jobName(opts.Name), shots, batchRef{})
	return h, nil
}

// ProcessCircuits submits each circuit and returns one handle per circuit.
// shots holds one count per circuit, or a single count used for all of
// them. Predicates and shot limits are checked for every circuit before
// anything is sent. If a later submission fails, the handles already issued
// are returned with the error.
func (b *Backend) ProcessCircuits(ctx context.Context, circuits []*circuit.Circuit, shots []int, opts RunOptions) ([]Handle, error) {
	return b.process(ctx, circuits, shots, opts, batchRef{})
}

// ProcessCircuit submits a single circuit.
func (b *Backend) ProcessCircuit(ctx context.Context, c *circuit.Circuit, shots int, opts RunOptions) (Handle, error) {
	hs, err := b.ProcessCircuits(ctx, []*circuit.Circuit{c}, []int{shots}, opts)
	if err != nil {
		return Handle{}, err
	}
	return hs[0], nil
}

func (b *Backend) process(ctx context.Context, circuits []*circuit.Circuit, shots []int, opts RunOptions, batch batchRef) ([]Handle, error) {
	counts, err := shotList(shots, len(circuits))
	if err != nil {
		return nil, err
	}
	d, err := b.DeviceInfo(ctx)
	if err != nil {
		return nil, err
	}

	if !opts.SkipValidation {
		for i, c := range circuits {
			failed, err := b.failedPredicates(ctx, c)
			if err != nil {
				return nil, err
			}
			if len(failed) > 0 {
				return nil, fmt.Errorf("%w: circuit %d (%s) fails %s", ErrInvalidCircuit, i, c.Name, strings.Join(failed, ", "))
			}
		}
	}
	for _, n := range counts {
		if err := checkShots(d, n); err != nil {
			return nil, err
		}
	}
	if opts.PostProcess && b.preparer == nil {
		return nil, fmt.Errorf("%w: post-processing requested but no preparer is configured", ErrConfiguration)
	}
	if !b.cfg.MachineDebug && b.encoder == nil {
		return nil, fmt.Errorf("%w: no circuit encoder configured", ErrConfiguration)
	}

	handles := make([]Handle, 0, len(circuits))
	for i, c := range circuits {
		main, pp, err := b.prepare(c, opts.PostProcess)
		if err != nil {
			return handles, err
		}

		if b.cfg.MachineDebug {
			handles = append(handles, DebugHandle(c.NQubits(), counts[i], c.NBits(), pp))
			continue
		}

		program, err := b.encoder.Encode(main)
		if err != nil {
			return handles, fmt.Errorf("encode circuit %s: %w", c.Name, err)
		}
		so := opts.SubmitOptions
		so.Name = c.Name
		jobID, err := b.submit(ctx, d, program, counts[i], so)
		if err != nil {
			return handles, err
		}
		h := Handle{JobID: jobID, PostProcess: pp}.Normalize()
		b.issue(ctx, h, b.jobName(c.Name), counts[i], batch)
		handles = append(handles, h)
	}
	return handles, nil
}

// prepare returns the circuit to send and the serialized post-processing
// circuit.
func (b *Backend) prepare(c *circuit.Circuit, postProcess bool) (*circuit.Circuit, string, error) {
	if !postProcess {
		return c, noPostProcess, nil
	}
	main, post, err := b.preparer.Prepare(c)
	if err != nil {
		return nil, "", fmt.Errorf("prepare circuit %s: %w", c.Name, err)
	}
	if post == nil {
		return main, noPostProcess, nil
	}
	data, err := json.Marshal(post)
	if err != nil {
		return nil, "", fmt.Errorf("encode postprocess circuit: %w", err)
	}
	return main, string(data), nil
}

// submit sends one job body. Wasm support is checked first.
func (b *Backend) submit(ctx context.Context, d *device.Descriptor, program string, shots int, opts SubmitOptions) (string, error) {
	if len(opts.Wasm) > 0 && !d.Capabilities.Wasm {
		return "", fmt.Errorf("%w: %s does not accept wasm modules", ErrUnsupportedFeature, d.Name)
	}

	body := b.body(program, shots, opts)
	jobID, err := b.session.SubmitJob(ctx, body)
	if err != nil {
		b.metrics.IncSubmissionErrors(b.cfg.Device)
		return "", fmt.Errorf("submit job to %s: %w", b.cfg.Device, err)
	}
	return jobID, nil
}

// body builds the request. Options merge as instance < call options, and
// request options override the top level last.
func (b *Backend) body(program string, shots int, opts SubmitOptions) map[string]any {
	tket := map[string]any{}
	if opts.CompilationPass != nil {
		tket["compilation-pass"] = opts.CompilationPass
	}
	options := map[string]any{
		"simulator":   b.cfg.Simulator,
		"no-opt":      opts.NoOpt,
		"error-model": !opts.Noiseless,
		"tket":        tket,
	}

	body := map[string]any{
		"name":     b.jobName(opts.Name),
		"count":    shots,
		"machine":  b.cfg.Device,
		"language": Language,
		"program":  program,
		"priority": Priority,
		"options":  options,
	}

	group := opts.Group
	if group == "" {
		group = b.cfg.Group
	}
	if group != "" {
		body["group"] = group
	}
	if len(opts.Wasm) > 0 {
		body["cfl"] = base64.StdEncoding.EncodeToString(opts.Wasm)
	}

	maps.Copy(options, b.cfg.Options)
	maps.Copy(options, opts.Options)
	maps.Copy(body, opts.RequestOptions)
	return body
}

// issue records a freshly submitted job everywhere it is tracked. Failures
// of the optional sinks are logged and do not fail the submission.
func (b *Backend) issue(ctx context.Context, h Handle, name string, shots int, batch batchRef) {
	b.cache.Seed(h.key())
	b.metrics.IncJobsSubmitted(b.cfg.Device, 1)

	head := batch.head
	if batch.start {
		head = h.JobID
	}
	log := logging.JobLogger(logging.CorrelationID(ctx), b.cfg.Device, h.JobID)
	log.Info("job submitted", "shots", shots, "batch_head", head)

	if h.JobID == "" {
		return
	}
	now := time.Now().UTC()
	if err := b.journal.Record(ctx, journal.Entry{
		JobID:       h.JobID,
		PostProcess: h.postProcess(),
		Device:      b.cfg.Device,
		BatchHead:   head,
		Shots:       shots,
		SubmittedAt: now,
	}); err != nil {
		log.Warn("failed to journal handle", "error", err)
	}
	if err := b.catalog.RecordSubmission(ctx, metadata.JobRecord{
		JobID:       h.JobID,
		Device:      b.cfg.Device,
		Name:        name,
		Shots:       shots,
		BatchHead:   head,
		Group:       b.cfg.Group,
		PostProcess: h.PostProcessJSON() != nil,
		SubmittedAt: now,
	}); err != nil {
		log.Warn("failed to record job in catalog", "error", err)
	}
	if err := b.events.EmitJob(ctx, events.Event{
		Kind:      events.KindSubmitted,
		JobID:     h.JobID,
		Device:    b.cfg.Device,
		Status:    string(StatusQueued),
		Shots:     shots,
		BatchHead: head,
	}); err != nil {
		log.Warn("failed to emit submitted event", "error", err)
	}
}

func (b *Backend) jobName(name string) string {
	if name == "" {
		return b.cfg.Label
	}
	return name
}

func checkShots(d *device.Descriptor, shots int) error {
	if limit := d.Capabilities.MaxShots; limit != nil && shots > *limit {
		return fmt.Errorf("%w: %d shots requested, %s allows %d", ErrShotLimitExceeded, shots, d.Name, *limit)
	}
	return nil
}

func shotList(shots []int, n int) ([]int, error) {
	switch {
	case len(shots) == n:
	case len(shots) == 1:
		counts := make([]int, n)
		for i := range counts {
			counts[i] = shots[0]
		}
		shots = counts
	default:
		return nil, fmt.Errorf("%w: %d shot counts for %d circuits", ErrConfiguration, len(shots), n)
	}
	for _, s := range shots {
		if s < 1 {
			return nil, fmt.Errorf("%w: shot count must be positive, got %d", ErrConfiguration, s)
		}
	}
	return shots, nil
}
