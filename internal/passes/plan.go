package passes

import (
	"fmt"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
)

// Engine pass names.
const (
	DecomposeBoxes       = "DecomposeBoxes"
	Rebase               = "AutoRebase"
	SynthesiseTK         = "SynthesiseTK"
	NormaliseTK2         = "NormaliseTK2"
	DecomposeTK2         = "DecomposeTK2"
	ZZPhaseToRz          = "ZZPhaseToRz"
	RemoveRedundancies   = "RemoveRedundancies"
	AutoSquash           = "AutoSquash"
	SimplifyInitial      = "SimplifyInitial"
	FullPeepholeOptimise = "FullPeepholeOptimise"
)

// Locally implemented pass names.
const (
	ResizeScratchName = "ResizeScratchRegisters"
	FlattenName       = "FlattenRegisters"
)

// DefaultScratchWidth is the widest scratch register the wire format accepts.
const DefaultScratchWidth = 32

const perfectFidelity = 1.0

// Plan returns the ordered pass specs for gates at level.
func Plan(gates circuit.GateSet, level int) ([]Spec, error) {
	if level < 0 || level > 2 {
		return nil, fmt.Errorf("level %d: %w", level, ErrInvalidLevel)
	}
	fidelities := make(map[string]any)
	if gates.Contains(circuit.ZZMax) {
		fidelities["ZZMax_fidelity"] = perfectFidelity
	}
	if gates.Contains(circuit.ZZPhase) {
		fidelities["ZZPhase_fidelity"] = perfectFidelity
	}
	if len(fidelities) == 0 {
		return nil, ErrNoTwoQubitGate
	}

	plan := []Spec{
		{Name: DecomposeBoxes},
		{Name: ResizeScratchName, Args: map[string]any{"max_size": DefaultScratchWidth}},
	}
	squash := Spec{Name: AutoSquash, Args: map[string]any{
		"singleqs": []string{string(circuit.PhasedX), string(circuit.Rz)},
	}}
	simplify := Spec{Name: SimplifyInitial, Args: map[string]any{
		"allow_classical":   false,
		"create_all_qubits": true,
	}}

	switch level {
	case 0:
		plan = append(plan, rebaseSpec(gates))
	case 1:
		plan = append(plan,
			Spec{Name: SynthesiseTK},
			Spec{Name: NormaliseTK2},
			Spec{Name: DecomposeTK2, Args: fidelities},
			rebaseSpec(gates),
			Spec{Name: ZZPhaseToRz},
			Spec{Name: RemoveRedundancies},
			squash,
			simplify,
		)
	case 2:
		plan = append(plan,
			Spec{Name: FullPeepholeOptimise, Args: map[string]any{"target_2qb_gate": string(circuit.TK2)}},
			Spec{Name: NormaliseTK2},
			Spec{Name: DecomposeTK2, Args: fidelities},
			rebaseSpec(gates),
			Spec{Name: RemoveRedundancies},
			squash,
			simplify,
		)
	}

	return append(plan, Spec{Name: FlattenName}), nil
}

func rebaseSpec(gates circuit.GateSet) Spec {
	return Spec{Name: Rebase, Args: map[string]any{"gateset": gates.Sorted()}}
}
