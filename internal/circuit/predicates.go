package circuit

import "fmt"

// Predicate is a property a circuit must satisfy before submission.
type Predicate interface {
	Name() string
	Verify(c *Circuit) bool
}

type noSymbols struct{}

// NoSymbols rejects circuits with symbolic parameters.
func NoSymbols() Predicate { return noSymbols{} }

func (noSymbols) Name() string { return "NoSymbolsPredicate" }

func (noSymbols) Verify(c *Circuit) bool {
	for _, op := range c.Ops {
		if op.Symbolic() {
			return false
		}
	}
	return true
}

type gateSetPredicate struct {
	gates GateSet
}

// GateSetPredicate rejects circuits using operations outside gs.
func GateSetPredicate(gs GateSet) Predicate { return gateSetPredicate{gates: gs.Clone()} }

func (gateSetPredicate) Name() string { return "GateSetPredicate" }

func (p gateSetPredicate) Verify(c *Circuit) bool {
	for _, op := range c.Ops {
		if !p.gates.Contains(op.Type) {
			return false
		}
	}
	return true
}

type maxNQubits struct {
	n int
}

// MaxNQubits rejects circuits declaring more than n qubits.
func MaxNQubits(n int) Predicate { return maxNQubits{n: n} }

func (p maxNQubits) Name() string { return fmt.Sprintf("MaxNQubitsPredicate(%d)", p.n) }

func (p maxNQubits) Verify(c *Circuit) bool { return c.NQubits() <= p.n }

// Check returns the names of the predicates c fails, in order.
func Check(c *Circuit, preds []Predicate) []string {
	var failed []string
	for _, p := range preds {
		if !p.Verify(c) {
			failed = append(failed, p.Name())
		}
	}
	return failed
}
