// Package device resolves named devices into typed capability records.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/logging"
)

// ErrDeviceUnavailable is returned when a device is absent from the listing.
var ErrDeviceUnavailable = errors.New("device not available")

// UnavailableError names the device that could not be found.
type UnavailableError struct {
	Device string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("device %q not available", e.Device)
}

func (e *UnavailableError) Unwrap() error { return ErrDeviceUnavailable }

// Capabilities is the typed view of a device's capability map.
type Capabilities struct {
	Wasm          bool
	Batching      bool
	MaxShots      *int
	SyntaxChecker string
	Extra         map[string]any
}

// Descriptor describes a resolved device. NQubits of zero means unbounded.
type Descriptor struct {
	Name         string
	NQubits      int
	GateSet      circuit.GateSet
	Capabilities Capabilities
}

// BaseGateSet returns the operations every device accepts.
func BaseGateSet() circuit.GateSet {
	return circuit.NewGateSet(
		circuit.Rz,
		circuit.PhasedX,
		circuit.ZZMax,
		circuit.Reset,
		circuit.Measure,
		circuit.Barrier,
		circuit.RangePredicate,
		circuit.MultiBit,
		circuit.ExplicitPredicate,
		circuit.ExplicitModifier,
		circuit.SetBits,
		circuit.CopyBits,
		circuit.ClassicalExpBox,
		circuit.WASM,
	)
}

// GateSetFor extends the base set with ZZPhase when the device advertises
// the parameterised two-qubit phase gate.
func GateSetFor(advertised []string) circuit.GateSet {
	gs := BaseGateSet()
	for _, g := range advertised {
		if g == "RZZ" {
			gs.Add(circuit.ZZPhase)
		}
	}
	return gs
}

// Debug returns the descriptor assumed when no service is consulted.
func Debug(name string) *Descriptor {
	return &Descriptor{
		Name:    name,
		GateSet: BaseGateSet(),
		Capabilities: Capabilities{
			Wasm:     true,
			Batching: true,
		},
	}
}

// Lister returns the raw device listing.
type Lister interface {
	ListMachines(ctx context.Context) ([]map[string]any, error)
}

// Resolver turns device names into descriptors.
type Resolver struct {
	lister Lister
	debug  bool
	log    *slog.Logger
}

// NewResolver creates a resolver. In debug mode the lister is never called.
func NewResolver(lister Lister, debug bool) *Resolver {
	return &Resolver{
		lister: lister,
		debug:  debug,
		log:    logging.Component("device"),
	}
}

// Resolve looks up a single device.
func (r *Resolver) Resolve(ctx context.Context, name string) (*Descriptor, error) {
	if r.debug {
		return Debug(name), nil
	}
	listing, err := r.lister.ListMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	for _, entry := range listing {
		if n, _ := entry["name"].(string); n != name {
			continue
		}
		d, err := FromListing(entry)
		if err != nil {
			return nil, err
		}
		r.log.Debug("resolved device", "device", name, "n_qubits", d.NQubits, "batching", d.Capabilities.Batching)
		return &d, nil
	}
	return nil, &UnavailableError{Device: name}
}

// List resolves every device in the listing.
func (r *Resolver) List(ctx context.Context) ([]Descriptor, error) {
	listing, err := r.lister.ListMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	out := make([]Descriptor, 0, len(listing))
	for _, entry := range listing {
		d, err := FromListing(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
