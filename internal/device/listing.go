package device

import (
	"encoding/json"
	"fmt"
	"math"
)

// FromListing validates one raw listing entry. Keys other than the ones
// modelled in Capabilities are kept in Capabilities.Extra.
func FromListing(entry map[string]any) (Descriptor, error) {
	name, ok := entry["name"].(string)
	if !ok || name == "" {
		return Descriptor{}, fmt.Errorf("device listing entry without name")
	}

	nQubits, err := intField(entry, "n_qubits")
	if err != nil {
		return Descriptor{}, fmt.Errorf("device %s: %w", name, err)
	}
	if nQubits == nil {
		return Descriptor{}, fmt.Errorf("device %s: missing n_qubits", name)
	}

	var gates []string
	if raw, ok := entry["gateset"].([]any); ok {
		for _, g := range raw {
			if s, ok := g.(string); ok {
				gates = append(gates, s)
			}
		}
	}

	caps := Capabilities{Extra: make(map[string]any)}
	caps.Wasm, _ = entry["wasm"].(bool)
	caps.Batching, _ = entry["batching"].(bool)
	caps.SyntaxChecker, _ = entry["syntax_checker"].(string)
	if caps.MaxShots, err = intField(entry, "n_shots"); err != nil {
		return Descriptor{}, fmt.Errorf("device %s: %w", name, err)
	}

	for k, v := range entry {
		switch k {
		case "name", "n_qubits", "gateset", "wasm", "batching", "syntax_checker", "n_shots":
		default:
			caps.Extra[k] = v
		}
	}

	return Descriptor{
		Name:         name,
		NQubits:      *nQubits,
		GateSet:      GateSetFor(gates),
		Capabilities: caps,
	}, nil
}

// intField reads an integral number that may have been decoded as float64 or
// json.Number. A missing or null key yields nil.
func intField(entry map[string]any, key string) (*int, error) {
	raw, ok := entry[key]
	if !ok || raw == nil {
		return nil, nil
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		return &v, nil
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("field %s: unexpected type %T", key, raw)
	}
	if f != math.Trunc(f) || f < 0 {
		return nil, fmt.Errorf("field %s: %v is not a non-negative integer", key, f)
	}
	n := int(f)
	return &n, nil
}
