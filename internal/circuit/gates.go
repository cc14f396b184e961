package circuit

import "sort"

// OpType names an operation kind.
type OpType string

// Native operations understood by the service.
const (
	Rz                OpType = "Rz"
	PhasedX           OpType = "PhasedX"
	ZZMax             OpType = "ZZMax"
	ZZPhase           OpType = "ZZPhase"
	Reset             OpType = "Reset"
	Measure           OpType = "Measure"
	Barrier           OpType = "Barrier"
	RangePredicate    OpType = "RangePredicate"
	MultiBit          OpType = "MultiBit"
	ExplicitPredicate OpType = "ExplicitPredicate"
	ExplicitModifier  OpType = "ExplicitModifier"
	SetBits           OpType = "SetBits"
	CopyBits          OpType = "CopyBits"
	ClassicalExpBox   OpType = "ClassicalExpBox"
	WASM              OpType = "WASM"
)

// Common non-native operations produced by front ends.
const (
	H     OpType = "H"
	X     OpType = "X"
	Y     OpType = "Y"
	Z     OpType = "Z"
	S     OpType = "S"
	T     OpType = "T"
	Tdg   OpType = "Tdg"
	Rx    OpType = "Rx"
	Ry    OpType = "Ry"
	CX    OpType = "CX"
	CY    OpType = "CY"
	CZ    OpType = "CZ"
	CRz   OpType = "CRz"
	CSWAP OpType = "CSWAP"
	TK1   OpType = "TK1"
	TK2   OpType = "TK2"
)

// GateSet is a set of operation types.
type GateSet map[OpType]struct{}

// NewGateSet builds a set from the given types.
func NewGateSet(types ...OpType) GateSet {
	gs := make(GateSet, len(types))
	for _, t := range types {
		gs[t] = struct{}{}
	}
	return gs
}

// Contains reports membership.
func (gs GateSet) Contains(t OpType) bool {
	_, ok := gs[t]
	return ok
}

// Add inserts a type.
func (gs GateSet) Add(t OpType) {
	gs[t] = struct{}{}
}

// Clone returns an independent copy.
func (gs GateSet) Clone() GateSet {
	out := make(GateSet, len(gs))
	for t := range gs {
		out[t] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (gs GateSet) Sorted() []OpType {
	out := make([]OpType, 0, len(gs))
	for t := range gs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
