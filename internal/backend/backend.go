// Package backend drives the job lifecycle against the remote service:
// submission, status polling, result decoding, batching and cost quotes.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/api"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/cache"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/device"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/events"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/journal"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/logging"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/metadata"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/metrics"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/passes"
)

// Default instance settings.
const (
	DefaultLabel     = "job"
	DefaultSimulator = "state-vector"
)

// Session is the authenticated connection the backend talks through.
// *api.Session and *api.Offline implement it.
type Session interface {
	Login(ctx context.Context) error
	Logout()
	ListMachines(ctx context.Context) ([]map[string]any, error)
	MachineState(ctx context.Context, name string) (string, error)
	SubmitJob(ctx context.Context, body map[string]any) (string, error)
	JobStatus(ctx context.Context, jobID string) (*api.JobResponse, error)
	RetrieveJob(ctx context.Context, jobID string, opts api.WaitOptions) (*api.JobResponse, error)
	CancelJob(ctx context.Context, jobID string) error
}

// Config holds per-instance settings.
type Config struct {
	Device string
	// Label names jobs whose circuit has no name.
	Label     string
	Simulator string
	Group     string
	// MachineDebug skips the network entirely and returns zero results.
	MachineDebug bool
	// Options are merged into every request's "options" object.
	Options map[string]any
}

// ConfigFrom builds a Config from the loaded application configuration.
func ConfigFrom(cfg config.BackendConfig) Config {
	return Config{
		Device:       cfg.Device,
		Label:        cfg.Label,
		Simulator:    cfg.Simulator,
		Group:        cfg.Group,
		MachineDebug: cfg.MachineDebug,
		Options:      cfg.Options,
	}
}

// Backend submits circuits to one device. It is safe for concurrent use.
type Backend struct {
	cfg       Config
	session   Session
	resolver  *device.Resolver
	assembler passes.Assembler
	encoder   circuit.Encoder
	preparer  circuit.Preparer
	cache     *cache.Cache
	journal   journal.Manager
	events    events.Emitter
	catalog   metadata.Catalog
	metrics   *metrics.Metrics
	log       *slog.Logger

	mu       sync.Mutex
	desc     *device.Descriptor
	reported map[cache.Key]StatusEnum // terminal states already recorded
}

// Option configures a Backend.
type Option func(*Backend)

// WithResolver shares a device resolver between backends.
func WithResolver(r *device.Resolver) Option {
	return func(b *Backend) { b.resolver = r }
}

// WithPassEngine sets the engine that builds compilation passes.
func WithPassEngine(e passes.Engine) Option {
	return func(b *Backend) { b.assembler = passes.Assembler{Engine: e} }
}

// WithEncoder sets the circuit to program text serializer.
func WithEncoder(e circuit.Encoder) Option {
	return func(b *Backend) { b.encoder = e }
}

// WithPreparer sets the splitter used when post-processing is requested.
func WithPreparer(p circuit.Preparer) Option {
	return func(b *Backend) { b.preparer = p }
}

// WithCache replaces the in-memory result cache, e.g. with one that
// persists results.
func WithCache(c *cache.Cache) Option {
	return func(b *Backend) { b.cache = c }
}

// WithJournal records issued handles.
func WithJournal(m journal.Manager) Option {
	return func(b *Backend) { b.journal = m }
}

// WithEmitter sends lifecycle events.
func WithEmitter(e events.Emitter) Option {
	return func(b *Backend) { b.events = e }
}

// WithCatalog records jobs in a catalog.
func WithCatalog(c metadata.Catalog) Option {
	return func(b *Backend) { b.catalog = c }
}

// WithMetrics reports to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// New creates a backend for cfg.Device using session.
func New(session Session, cfg Config, opts ...Option) *Backend {
	if cfg.Label == "" {
		cfg.Label = DefaultLabel
	}
	if cfg.Simulator == "" {
		cfg.Simulator = DefaultSimulator
	}
	jm, _ := journal.NewManager(journal.Config{})

	b := &Backend{
		cfg:      cfg,
		session:  session,
		cache:    cache.New(),
		journal:  jm,
		events:   events.NoopEmitter{},
		catalog:  metadata.NoopCatalog{},
		log:      logging.Component("backend"),
		reported: make(map[cache.Key]StatusEnum),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.resolver == nil {
		b.resolver = device.NewResolver(session, cfg.MachineDebug)
	}
	b.log = b.log.With("device", cfg.Device)
	return b
}

// derive creates a backend for another device that shares this one's
// session and collaborators but has its own cache and descriptor.
func (b *Backend) derive(deviceName string) *Backend {
	cfg := b.cfg
	cfg.Device = deviceName
	return New(b.session, cfg,
		WithResolver(b.resolver),
		WithPassEngine(b.assembler.Engine),
		WithEncoder(b.encoder),
		WithPreparer(b.preparer),
		WithJournal(b.journal),
		WithEmitter(b.events),
		WithCatalog(b.catalog),
		WithMetrics(b.metrics),
	)
}

// Device returns the device name.
func (b *Backend) Device() string { return b.cfg.Device }

// Debug reports whether the backend runs without the network.
func (b *Backend) Debug() bool { return b.cfg.MachineDebug }

// DeviceInfo returns the device descriptor, resolving it on first use.
func (b *Backend) DeviceInfo(ctx context.Context) (*device.Descriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.desc != nil {
		return b.desc, nil
	}
	d, err := b.resolver.Resolve(ctx, b.cfg.Device)
	if err != nil {
		return nil, err
	}
	b.desc = d
	return d, nil
}

// GateSet returns the device's native operations.
func (b *Backend) GateSet(ctx context.Context) (circuit.GateSet, error) {
	d, err := b.DeviceInfo(ctx)
	if err != nil {
		return nil, err
	}
	return d.GateSet, nil
}

// RequiredPredicates lists the checks a circuit must pass before
// submission. Debug backends have no qubit limit.
func (b *Backend) RequiredPredicates(ctx context.Context) ([]circuit.Predicate, error) {
	d, err := b.DeviceInfo(ctx)
	if err != nil {
		return nil, err
	}
	preds := []circuit.Predicate{
		circuit.NoSymbols(),
		circuit.GateSetPredicate(d.GateSet),
	}
	if !b.cfg.MachineDebug && d.NQubits > 0 {
		preds = append(preds, circuit.MaxNQubits(d.NQubits))
	}
	return preds, nil
}

// ValidCircuit reports whether c satisfies every required predicate.
func (b *Backend) ValidCircuit(ctx context.Context, c *circuit.Circuit) (bool, error) {
	failed, err := b.failedPredicates(ctx, c)
	if err != nil {
		return false, err
	}
	return len(failed) == 0, nil
}

func (b *Backend) failedPredicates(ctx context.Context, c *circuit.Circuit) ([]string, error) {
	preds, err := b.RequiredPredicates(ctx)
	if err != nil {
		return nil, err
	}
	return circuit.Check(c, preds), nil
}

// RebasePass returns a pass converting any circuit to the native gates.
func (b *Backend) RebasePass(ctx context.Context) (passes.Pass, error) {
	gs, err := b.GateSet(ctx)
	if err != nil {
		return nil, err
	}
	p, err := b.assembler.Rebase(gs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return p, nil
}

// DefaultCompilationPass returns the pass sequence for level 0, 1 or 2.
func (b *Backend) DefaultCompilationPass(ctx context.Context, level int) (passes.Pass, error) {
	gs, err := b.GateSet(ctx)
	if err != nil {
		return nil, err
	}
	p, err := b.assembler.Build(gs, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return p, nil
}

// CompiledCircuit applies the default compilation pass to a copy of c.
func (b *Backend) CompiledCircuit(ctx context.Context, c *circuit.Circuit, level int) (*circuit.Circuit, error) {
	p, err := b.DefaultCompilationPass(ctx, level)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := p.Apply(c.Clone())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", c.Name, err)
	}
	b.metrics.ObserveCompileDuration(b.cfg.Device, strconv.Itoa(level), time.Since(start).Seconds())
	return out, nil
}

// JobID returns the remote job id of h.
func (b *Backend) JobID(h Handle) string { return h.JobID }

// Login forces a fresh login on the shared session.
func (b *Backend) Login(ctx context.Context) error {
	return b.session.Login(ctx)
}

// Logout discards the session's tokens.
func (b *Backend) Logout() {
	b.session.Logout()
}

// AvailableDevices lists every device the service offers.
func (b *Backend) AvailableDevices(ctx context.Context) ([]device.Descriptor, error) {
	return b.resolver.List(ctx)
}

// DeviceState returns the service's state string for name, e.g. "online".
func (b *Backend) DeviceState(ctx context.Context, name string) (string, error) {
	state, err := b.session.MachineState(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get state of %s: %w", name, err)
	}
	return state, nil
}

func isUnauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}
