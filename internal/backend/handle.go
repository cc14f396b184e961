package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/cache"
)

// DebugPrefix marks job ids synthesized in debug mode.
const DebugPrefix = "_MACHINE_DEBUG_"

// noPostProcess is the serialized form of an absent post-processing circuit.
const noPostProcess = "null"

// Handle identifies a submitted job. It is comparable and can be rebuilt
// from its two fields alone.
type Handle struct {
	JobID string
	// PostProcess is the JSON encoding of the classical post-processing
	// circuit, or "null".
	PostProcess string
}

// String encodes the handle as a JSON pair.
func (h Handle) String() string {
	data, _ := json.Marshal([2]string{h.JobID, h.postProcess()})
	return string(data)
}

// ParseHandle decodes a handle written by Handle.String.
func ParseHandle(s string) (Handle, error) {
	var pair []string
	if err := json.Unmarshal([]byte(s), &pair); err != nil {
		return Handle{}, fmt.Errorf("parse handle: %w", err)
	}
	if len(pair) != 2 {
		return Handle{}, fmt.Errorf("parse handle: want 2 fields, got %d", len(pair))
	}
	if !json.Valid([]byte(pair[1])) {
		return Handle{}, fmt.Errorf("parse handle: postprocess field is not JSON")
	}
	return Handle{JobID: pair[0], PostProcess: pair[1]}.Normalize(), nil
}

// Normalize returns h with an absent post-processing circuit spelled
// "null", so equal handles compare equal.
func (h Handle) Normalize() Handle {
	h.PostProcess = h.postProcess()
	return h
}

// IsDebug reports whether h carries a debug marker instead of a job id.
func (h Handle) IsDebug() bool {
	return strings.HasPrefix(h.JobID, DebugPrefix)
}

// PostProcessJSON returns the post-processing circuit, or nil when absent.
func (h Handle) PostProcessJSON() json.RawMessage {
	if pp := h.postProcess(); pp != noPostProcess {
		return json.RawMessage(pp)
	}
	return nil
}

func (h Handle) postProcess() string {
	if h.PostProcess == "" {
		return noPostProcess
	}
	return h.PostProcess
}

func (h Handle) key() cache.Key {
	return cache.Key{JobID: h.JobID, PostProcess: h.postProcess()}
}

// DebugHandle returns the marker handle for a job that never left the
// process.
func DebugHandle(nQubits, shots, nBits int, postProcess string) Handle {
	if postProcess == "" {
		postProcess = noPostProcess
	}
	return Handle{
		JobID:       fmt.Sprintf("%s(%d, %d, %d)", DebugPrefix, nQubits, shots, nBits),
		PostProcess: postProcess,
	}
}

// parseDebugMarker returns the shot count and result width encoded in a
// debug job id. The two-field form (qubits, shots) uses the qubit count as
// the width.
func parseDebugMarker(jobID string) (shots, width int, err error) {
	body, ok := strings.CutPrefix(jobID, DebugPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("%q is not a debug handle", jobID)
	}
	body = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(body), "("), ")")
	fields := strings.Split(body, ",")
	if len(fields) != 2 && len(fields) != 3 {
		return 0, 0, fmt.Errorf("debug handle %q: want 2 or 3 fields", jobID)
	}
	vals := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("debug handle %q: bad field %q", jobID, f)
		}
		vals[i] = v
	}
	if len(vals) == 2 {
		return vals[1], vals[0], nil
	}
	return vals[1], vals[2], nil
}
