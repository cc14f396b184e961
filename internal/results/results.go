// Package results decodes per-register bit strings returned by the job
// service into a shot table.
package results

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
)

// DefaultRegister names the register used for synthesized tables.
const DefaultRegister = "c"

// ShotTable holds one row per shot and one column per classical bit.
// Columns run over registers in descending name order, most significant
// bit first within each register.
type ShotTable struct {
	Bits []circuit.Bit `json:"bits"`
	Rows [][]uint8     `json:"rows"`
}

// Result is a decoded job result plus the post-processing circuit, if any,
// that the caller still has to apply.
type Result struct {
	Shots       ShotTable       `json:"shots"`
	PostProcess json.RawMessage `json:"postprocess,omitempty"`
}

// Shape returns (shots, columns).
func (t ShotTable) Shape() (int, int) {
	return len(t.Rows), len(t.Bits)
}

// Column returns the index of bit b, or -1.
func (t ShotTable) Column(b circuit.Bit) int {
	for i, have := range t.Bits {
		if have == b {
			return i
		}
	}
	return -1
}

// Counts tallies identical rows, keyed by their bit string.
func (t ShotTable) Counts() map[string]int {
	counts := make(map[string]int)
	var sb strings.Builder
	for _, row := range t.Rows {
		sb.Reset()
		for _, v := range row {
			sb.WriteByte('0' + v)
		}
		counts[sb.String()]++
	}
	return counts
}

// Equal reports whether two tables have the same columns and rows.
func (t ShotTable) Equal(o ShotTable) bool {
	if len(t.Bits) != len(o.Bits) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Bits {
		if t.Bits[i] != o.Bits[i] {
			return false
		}
	}
	for i := range t.Rows {
		if len(t.Rows[i]) != len(o.Rows[i]) {
			return false
		}
		for j := range t.Rows[i] {
			if t.Rows[i][j] != o.Rows[i][j] {
				return false
			}
		}
	}
	return true
}

// Zeros returns a shots x width table of zeros over DefaultRegister.
func Zeros(shots, width int) ShotTable {
	bits := make([]circuit.Bit, width)
	for i := range bits {
		bits[i] = circuit.Bit{Reg: DefaultRegister, Index: width - 1 - i}
	}
	rows := make([][]uint8, shots)
	for i := range rows {
		rows[i] = make([]uint8, width)
	}
	return ShotTable{Bits: bits, Rows: rows}
}

// Decode converts the service's register -> bit strings map into a table.
// Each string is one shot with the register's most significant bit first.
func Decode(raw map[string][]string) (ShotTable, error) {
	regs := make([]string, 0, len(raw))
	for name := range raw {
		regs = append(regs, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(regs)))

	shots := -1
	var table ShotTable
	for _, name := range regs {
		rows := raw[name]
		if shots == -1 {
			shots = len(rows)
			table.Rows = make([][]uint8, shots)
		} else if len(rows) != shots {
			return ShotTable{}, fmt.Errorf("register %s has %d shots, expected %d", name, len(rows), shots)
		}

		width := 0
		if len(rows) > 0 {
			width = len(rows[0])
		}
		for i := width - 1; i >= 0; i-- {
			table.Bits = append(table.Bits, circuit.Bit{Reg: name, Index: i})
		}
		for s, row := range rows {
			if len(row) != width {
				return ShotTable{}, fmt.Errorf("register %s shot %d has %d bits, expected %d", name, s, len(row), width)
			}
			for j := 0; j < width; j++ {
				switch row[j] {
				case '0':
					table.Rows[s] = append(table.Rows[s], 0)
				case '1':
					table.Rows[s] = append(table.Rows[s], 1)
				default:
					return ShotTable{}, fmt.Errorf("register %s shot %d: invalid bit %q", name, s, row[j])
				}
			}
		}
	}
	if table.Rows == nil {
		table.Rows = [][]uint8{}
	}
	return table, nil
}
