package passes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
)

type recordingEngine struct {
	resolved []Spec
}

type namedPass string

func (n namedPass) Name() string { return string(n) }

func (n namedPass) Apply(c *circuit.Circuit) (*circuit.Circuit, error) { return c, nil }

func (e *recordingEngine) Resolve(spec Spec) (Pass, error) {
	e.resolved = append(e.resolved, spec)
	return namedPass(spec.Name), nil
}

func names(plan []Spec) []string {
	out := make([]string, len(plan))
	for i, s := range plan {
		out[i] = s.Name
	}
	return out
}

func TestPlanOrder(t *testing.T) {
	gates := circuit.NewGateSet(circuit.ZZMax, circuit.Rz, circuit.PhasedX)

	tests := []struct {
		level int
		want  []string
	}{
		{0, []string{DecomposeBoxes, ResizeScratchName, Rebase, FlattenName}},
		{1, []string{DecomposeBoxes, ResizeScratchName, SynthesiseTK, NormaliseTK2, DecomposeTK2, Rebase,
			ZZPhaseToRz, RemoveRedundancies, AutoSquash, SimplifyInitial, FlattenName}},
		{2, []string{DecomposeBoxes, ResizeScratchName, FullPeepholeOptimise, NormaliseTK2, DecomposeTK2, Rebase,
			RemoveRedundancies, AutoSquash, SimplifyInitial, FlattenName}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("level%d", tt.level), func(t *testing.T) {
			plan, err := Plan(gates, tt.level)
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			got := names(plan)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("plan = %v\nwant  %v", got, tt.want)
			}
		})
	}
}

func TestPlanFidelities(t *testing.T) {
	plan, err := Plan(circuit.NewGateSet(circuit.ZZMax, circuit.ZZPhase), 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range plan {
		if s.Name != DecomposeTK2 {
			continue
		}
		if s.Args["ZZMax_fidelity"] != 1.0 || s.Args["ZZPhase_fidelity"] != 1.0 {
			t.Errorf("unexpected fidelities: %v", s.Args)
		}
		return
	}
	t.Fatal("DecomposeTK2 missing from plan")
}

func TestPlanRejects(t *testing.T) {
	if _, err := Plan(circuit.NewGateSet(circuit.Rz), 0); !errors.Is(err, ErrNoTwoQubitGate) {
		t.Errorf("expected ErrNoTwoQubitGate, got %v", err)
	}
	if _, err := Plan(circuit.NewGateSet(circuit.ZZMax), 3); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestAssemblerResolvesLocalPassesWithoutEngine(t *testing.T) {
	engine := &recordingEngine{}
	p, err := Assembler{Engine: engine}.Build(circuit.NewGateSet(circuit.ZZPhase), 0)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got := names(engine.resolved); fmt.Sprint(got) != fmt.Sprint([]string{DecomposeBoxes, Rebase}) {
		t.Errorf("engine resolved %v", got)
	}
	seq, ok := p.(Sequence)
	if !ok || len(seq) != 4 {
		t.Fatalf("unexpected pass %v", p.Name())
	}
	if seq[3].Name() != FlattenName {
		t.Errorf("last pass = %s", seq[3].Name())
	}

	if _, err := (Assembler{}).Build(circuit.NewGateSet(circuit.ZZPhase), 0); !errors.Is(err, ErrNoEngine) {
		t.Errorf("expected ErrNoEngine, got %v", err)
	}
}

func TestResizeScratchRegisters(t *testing.T) {
	c := &circuit.Circuit{}
	for i := 0; i < 70; i++ {
		c.AddBit(circuit.Bit{Reg: circuit.ScratchBitRegister, Index: i})
	}
	out, err := ResizeScratchRegisters(32).Apply(c)
	if err != nil {
		t.Fatal(err)
	}
	regs := out.Registers()
	if regs["tk_SCRATCH_BIT_0"] != 32 || regs["tk_SCRATCH_BIT_1"] != 32 || regs["tk_SCRATCH_BIT_2"] != 6 {
		t.Errorf("unexpected registers: %v", regs)
	}
	if _, ok := regs[circuit.ScratchBitRegister]; ok {
		t.Error("original scratch register still present")
	}
	if c.Bits[40].Reg != circuit.ScratchBitRegister {
		t.Error("input circuit was modified")
	}

	small := &circuit.Circuit{}
	small.AddBit(circuit.Bit{Reg: circuit.ScratchBitRegister, Index: 0})
	out, _ = ResizeScratchRegisters(32).Apply(small)
	if out.Bits[0].Reg != circuit.ScratchBitRegister {
		t.Error("register under the limit should be left alone")
	}

	t.Run("existing chunks", func(t *testing.T) {
		c := &circuit.Circuit{}
		c.AddBit(circuit.Bit{Reg: "c", Index: 0})
		for i := 0; i < 10; i++ {
			c.AddBit(circuit.Bit{Reg: circuit.ScratchBitRegister + "_0", Index: i})
		}
		for i := 0; i < 33; i++ {
			c.AddBit(circuit.Bit{Reg: circuit.ScratchBitRegister, Index: i})
		}
		out, err := ResizeScratchRegisters(32).Apply(c)
		if err != nil {
			t.Fatal(err)
		}
		seen := make(map[circuit.Bit]bool)
		for _, b := range out.Bits {
			if seen[b] {
				t.Fatalf("bit %v appears twice", b)
			}
			seen[b] = true
		}
		if len(seen) != 44 {
			t.Errorf("got %d distinct bits, want 44", len(seen))
		}
		regs := out.Registers()
		if regs["tk_SCRATCH_BIT_0"] != 32 || regs["tk_SCRATCH_BIT_1"] != 11 || regs["c"] != 1 {
			t.Errorf("unexpected registers: %v", regs)
		}
	})
}

func TestFlattenRegisters(t *testing.T) {
	c := &circuit.Circuit{}
	c.AddQubit(circuit.Qubit{Reg: "a", Index: 0})
	c.AddQubit(circuit.Qubit{Reg: "b", Index: 5})
	c.AddQubit(circuit.Qubit{Reg: "a", Index: 2})
	if err := c.Add(circuit.Op{Type: circuit.ZZMax, Qubits: []circuit.Qubit{{Reg: "a", Index: 2}, {Reg: "a", Index: 0}}}); err != nil {
		t.Fatal(err)
	}

	out, err := FlattenRegisters().Apply(c)
	if err != nil {
		t.Fatal(err)
	}
	want := []circuit.Qubit{{Reg: "node", Index: 0}, {Reg: "node", Index: 1}}
	if fmt.Sprint(out.Qubits) != fmt.Sprint(want) {
		t.Errorf("qubits = %v, want %v", out.Qubits, want)
	}
	op := out.Ops[0].Qubits
	if op[0] != (circuit.Qubit{Reg: "node", Index: 1}) || op[1] != (circuit.Qubit{Reg: "node", Index: 0}) {
		t.Errorf("op qubits = %v", op)
	}
}
