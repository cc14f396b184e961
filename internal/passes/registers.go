package passes

import (
	"fmt"
	"strings"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
)

// FlattenRegister is the single qubit register emitted by FlattenRegisters.
const FlattenRegister = "node"

type resizeScratch struct {
	width int
}

// ResizeScratchRegisters splits the scratch bits into chunks of at most
// width bits once there are more than width of them. Bits already in
// chunked scratch registers are renumbered together with new ones.
func ResizeScratchRegisters(width int) Pass { return resizeScratch{width: width} }

func (p resizeScratch) Name() string { return fmt.Sprintf("%s(%d)", ResizeScratchName, p.width) }

func (p resizeScratch) Apply(c *circuit.Circuit) (*circuit.Circuit, error) {
	if p.width <= 0 {
		return nil, fmt.Errorf("scratch register width must be positive, got %d", p.width)
	}
	var scratch []circuit.Bit
	for _, b := range c.Bits {
		if b.Reg == circuit.ScratchBitRegister || strings.HasPrefix(b.Reg, circuit.ScratchBitRegister+"_") {
			scratch = append(scratch, b)
		}
	}
	if len(scratch) <= p.width {
		return c, nil
	}
	out := c.Clone()
	bmap := make(map[circuit.Bit]circuit.Bit, len(scratch))
	for i, b := range scratch {
		bmap[b] = circuit.Bit{
			Reg:   fmt.Sprintf("%s_%d", circuit.ScratchBitRegister, i/p.width),
			Index: i % p.width,
		}
	}
	out.RenameUnits(nil, bmap)
	return out, nil
}

type flatten struct{}

// FlattenRegisters drops unused qubits and renumbers the rest contiguously
// into one register.
func FlattenRegisters() Pass { return flatten{} }

func (flatten) Name() string { return FlattenName }

func (flatten) Apply(c *circuit.Circuit) (*circuit.Circuit, error) {
	out := c.Clone()
	out.RemoveBlankWires()
	qmap := make(map[circuit.Qubit]circuit.Qubit, len(out.Qubits))
	for i, q := range out.Qubits {
		qmap[q] = circuit.Qubit{Reg: FlattenRegister, Index: i}
	}
	out.RenameUnits(qmap, nil)
	return out, nil
}
