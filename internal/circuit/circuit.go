// Package circuit holds the compiled-circuit model exchanged with the host
// compilation framework. The model is deliberately shallow: the adapter only
// needs unit identities, register widths and operation types to validate,
// rewrite registers and size results.
package circuit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ScratchBitRegister is the register name the compiler uses for internally
// generated classical bits.
const ScratchBitRegister = "tk_SCRATCH_BIT"

// Qubit identifies a quantum wire.
type Qubit struct {
	Reg   string `json:"reg"`
	Index int    `json:"index"`
}

func (q Qubit) String() string {
	return fmt.Sprintf("%s[%d]", q.Reg, q.Index)
}

// Bit identifies a classical wire.
type Bit struct {
	Reg   string `json:"reg"`
	Index int    `json:"index"`
}

func (b Bit) String() string {
	return fmt.Sprintf("%s[%d]", b.Reg, b.Index)
}

// Op is a single operation applied to a set of units.
type Op struct {
	Type   OpType   `json:"type"`
	Qubits []Qubit  `json:"qubits,omitempty"`
	Bits   []Bit    `json:"bits,omitempty"`
	Params []string `json:"params,omitempty"`
}

// Symbolic reports whether any parameter is not a plain number.
func (o Op) Symbolic() bool {
	for _, p := range o.Params {
		if _, err := strconv.ParseFloat(p, 64); err != nil {
			return true
		}
	}
	return false
}

// Circuit is an ordered list of operations over declared units.
type Circuit struct {
	Name   string  `json:"name,omitempty"`
	Qubits []Qubit `json:"qubits"`
	Bits   []Bit   `json:"bits"`
	Ops    []Op    `json:"commands"`
}

// New returns a circuit with n qubits in register "q" and m bits in register "c".
func New(name string, n, m int) *Circuit {
	c := &Circuit{Name: name}
	for i := 0; i < n; i++ {
		c.Qubits = append(c.Qubits, Qubit{Reg: "q", Index: i})
	}
	for i := 0; i < m; i++ {
		c.Bits = append(c.Bits, Bit{Reg: "c", Index: i})
	}
	return c
}

// NQubits returns the number of declared qubits.
func (c *Circuit) NQubits() int { return len(c.Qubits) }

// NBits returns the number of declared classical bits.
func (c *Circuit) NBits() int { return len(c.Bits) }

// AddQubit declares a qubit if it is not already present.
func (c *Circuit) AddQubit(q Qubit) {
	for _, have := range c.Qubits {
		if have == q {
			return
		}
	}
	c.Qubits = append(c.Qubits, q)
}

// AddBit declares a bit if it is not already present.
func (c *Circuit) AddBit(b Bit) {
	for _, have := range c.Bits {
		if have == b {
			return
		}
	}
	c.Bits = append(c.Bits, b)
}

// Add appends an operation. Units referenced by the operation must already be
// declared.
func (c *Circuit) Add(op Op) error {
	for _, q := range op.Qubits {
		if !c.hasQubit(q) {
			return fmt.Errorf("op %s: undeclared qubit %s", op.Type, q)
		}
	}
	for _, b := range op.Bits {
		if !c.hasBit(b) {
			return fmt.Errorf("op %s: undeclared bit %s", op.Type, b)
		}
	}
	c.Ops = append(c.Ops, op)
	return nil
}

// MeasureAll measures qubit i into bit i for every declared pair.
func (c *Circuit) MeasureAll() error {
	n := len(c.Qubits)
	if len(c.Bits) < n {
		n = len(c.Bits)
	}
	for i := 0; i < n; i++ {
		if err := c.Add(Op{Type: Measure, Qubits: []Qubit{c.Qubits[i]}, Bits: []Bit{c.Bits[i]}}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Circuit) hasQubit(q Qubit) bool {
	for _, have := range c.Qubits {
		if have == q {
			return true
		}
	}
	return false
}

func (c *Circuit) hasBit(b Bit) bool {
	for _, have := range c.Bits {
		if have == b {
			return true
		}
	}
	return false
}

// Registers returns the width of every classical register, computed as one
// more than the largest index declared in it.
func (c *Circuit) Registers() map[string]int {
	regs := make(map[string]int)
	for _, b := range c.Bits {
		if b.Index+1 > regs[b.Reg] {
			regs[b.Reg] = b.Index + 1
		}
	}
	return regs
}

// RenameUnits rewrites qubits and bits according to the given maps. Units
// absent from a map keep their identity.
func (c *Circuit) RenameUnits(qmap map[Qubit]Qubit, bmap map[Bit]Bit) {
	renameQ := func(q Qubit) Qubit {
		if nq, ok := qmap[q]; ok {
			return nq
		}
		return q
	}
	renameB := func(b Bit) Bit {
		if nb, ok := bmap[b]; ok {
			return nb
		}
		return b
	}
	for i, q := range c.Qubits {
		c.Qubits[i] = renameQ(q)
	}
	for i, b := range c.Bits {
		c.Bits[i] = renameB(b)
	}
	for i := range c.Ops {
		for j, q := range c.Ops[i].Qubits {
			c.Ops[i].Qubits[j] = renameQ(q)
		}
		for j, b := range c.Ops[i].Bits {
			c.Ops[i].Bits[j] = renameB(b)
		}
	}
}

// RemoveBlankWires drops qubits that no operation touches. Declaration order of
// the surviving qubits is preserved.
func (c *Circuit) RemoveBlankWires() {
	used := make(map[Qubit]bool)
	for _, op := range c.Ops {
		for _, q := range op.Qubits {
			used[q] = true
		}
	}
	kept := c.Qubits[:0]
	for _, q := range c.Qubits {
		if used[q] {
			kept = append(kept, q)
		}
	}
	c.Qubits = kept
}

// OpTypes returns the distinct operation types used, sorted.
func (c *Circuit) OpTypes() []OpType {
	seen := make(map[OpType]bool)
	for _, op := range c.Ops {
		seen[op.Type] = true
	}
	out := make([]OpType, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy.
func (c *Circuit) Clone() *Circuit {
	out := &Circuit{
		Name:   c.Name,
		Qubits: append([]Qubit(nil), c.Qubits...),
		Bits:   append([]Bit(nil), c.Bits...),
		Ops:    make([]Op, len(c.Ops)),
	}
	for i, op := range c.Ops {
		out.Ops[i] = Op{
			Type:   op.Type,
			Qubits: append([]Qubit(nil), op.Qubits...),
			Bits:   append([]Bit(nil), op.Bits...),
			Params: append([]string(nil), op.Params...),
		}
	}
	return out
}

// FromJSON decodes a circuit previously produced by json.Marshal.
func FromJSON(data []byte) (*Circuit, error) {
	var c Circuit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode circuit: %w", err)
	}
	return &c, nil
}

// Encoder serializes a compiled circuit to the wire program text.
type Encoder interface {
	Encode(c *Circuit) (string, error)
}

// Preparer splits a circuit into the part sent to the device and a classical
// post-processing circuit applied to the returned results.
type Preparer interface {
	Prepare(c *Circuit) (main *Circuit, post *Circuit, err error)
}
