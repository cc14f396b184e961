package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ListMachines returns the raw device listing with configuration.
func (s *Session) ListMachines(ctx context.Context) ([]map[string]any, error) {
	var machines []map[string]any
	if err := s.do(ctx, http.MethodGet, "machine/?config=true", nil, &machines); err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	return machines, nil
}

// MachineState returns the operational state of a device, e.g. "online".
// Family endpoints answer with one entry per member; the member matching
// name is used.
func (s *Session) MachineState(ctx context.Context, name string) (string, error) {
	var raw json.RawMessage
	if err := s.do(ctx, http.MethodGet, "machine/"+url.PathEscape(name), nil, &raw); err != nil {
		return "", fmt.Errorf("get machine %s: %w", name, err)
	}
	state, ok := stateFrom(raw, name)
	if !ok {
		return "", fmt.Errorf("get machine %s: response carried no state", name)
	}
	return state, nil
}

func stateFrom(raw json.RawMessage, name string) (string, bool) {
	var single struct {
		State string `json:"state"`
	}
	if json.Unmarshal(raw, &single) == nil && single.State != "" {
		return single.State, true
	}

	var list []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	if json.Unmarshal(raw, &list) == nil {
		for _, m := range list {
			if m.Name == name && m.State != "" {
				return m.State, true
			}
		}
		return "", false
	}

	var family map[string]json.RawMessage
	if json.Unmarshal(raw, &family) == nil {
		if member, ok := family[name]; ok {
			if json.Unmarshal(member, &single) == nil && single.State != "" {
				return single.State, true
			}
		}
	}
	return "", false
}
