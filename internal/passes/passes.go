// Package passes assembles the compilation pipeline applied before
// submission. The rewrite passes themselves are supplied by an external
// engine; this package owns which passes run, in what order, and the two
// register rewrites the wire format depends on.
package passes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
)

var (
	// ErrNoTwoQubitGate means the gate set offers neither ZZMax nor ZZPhase.
	ErrNoTwoQubitGate = errors.New("gate set has no supported two-qubit gate")
	// ErrInvalidLevel is returned for optimisation levels outside 0..2.
	ErrInvalidLevel = errors.New("optimisation level must be 0, 1 or 2")
	// ErrNoEngine is returned when an engine pass is requested without an engine.
	ErrNoEngine = errors.New("no pass engine configured")
)

// Pass rewrites a circuit.
type Pass interface {
	Name() string
	Apply(c *circuit.Circuit) (*circuit.Circuit, error)
}

// Spec names a pass and its arguments.
type Spec struct {
	Name string
	Args map[string]any
}

func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	return fmt.Sprintf("%s%v", s.Name, s.Args)
}

// Engine builds concrete passes from specs.
type Engine interface {
	Resolve(spec Spec) (Pass, error)
}

// Sequence applies passes in order.
type Sequence []Pass

func (s Sequence) Name() string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name()
	}
	return "Sequence[" + strings.Join(names, ", ") + "]"
}

func (s Sequence) Apply(c *circuit.Circuit) (*circuit.Circuit, error) {
	out := c
	for _, p := range s {
		var err error
		out, err = p.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", p.Name(), err)
		}
	}
	return out, nil
}

// Assembler turns a plan into an executable pass.
type Assembler struct {
	Engine Engine
}

// Build resolves the plan for gates at the given level. Register rewrites
// are built locally; everything else goes through the engine.
func (a Assembler) Build(gates circuit.GateSet, level int) (Pass, error) {
	plan, err := Plan(gates, level)
	if err != nil {
		return nil, err
	}
	return a.resolve(plan)
}

// Rebase builds the stand-alone rebase pass for gates.
func (a Assembler) Rebase(gates circuit.GateSet) (Pass, error) {
	p, err := a.resolveOne(rebaseSpec(gates))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a Assembler) resolve(plan []Spec) (Pass, error) {
	seq := make(Sequence, 0, len(plan))
	for _, spec := range plan {
		p, err := a.resolveOne(spec)
		if err != nil {
			return nil, err
		}
		seq = append(seq, p)
	}
	return seq, nil
}

func (a Assembler) resolveOne(spec Spec) (Pass, error) {
	switch spec.Name {
	case ResizeScratchName:
		width := DefaultScratchWidth
		if v, ok := spec.Args["max_size"].(int); ok {
			width = v
		}
		return ResizeScratchRegisters(width), nil
	case FlattenName:
		return FlattenRegisters(), nil
	}
	if a.Engine == nil {
		return nil, fmt.Errorf("resolve %s: %w", spec.Name, ErrNoEngine)
	}
	p, err := a.Engine.Resolve(spec)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", spec.Name, err)
	}
	return p, nil
}
