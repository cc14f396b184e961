package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/api"
)

// StatusEnum is the local view of a job's lifecycle.
type StatusEnum string

const (
	StatusQueued    StatusEnum = "QUEUED"
	StatusRunning   StatusEnum = "RUNNING"
	StatusCompleted StatusEnum = "COMPLETED"
	StatusError     StatusEnum = "ERROR"
	StatusCancelled StatusEnum = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s StatusEnum) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

var statusMap = map[string]StatusEnum{
	api.StatusQueued:    StatusQueued,
	api.StatusRunning:   StatusRunning,
	api.StatusCompleted: StatusCompleted,
	api.StatusFailed:    StatusError,
	api.StatusCanceling: StatusCancelled,
	api.StatusCanceled:  StatusCancelled,
}

// Status is a job's state plus the details reported with it.
type Status struct {
	State   StatusEnum
	Message StatusMessage
}

// StatusMessage carries the optional fields of a status response.
type StatusMessage struct {
	Name          string   `json:"name,omitempty"`
	SubmitDate    string   `json:"submit-date,omitempty"`
	ResultDate    string   `json:"result-date,omitempty"`
	QueuePosition *int     `json:"queue-position,omitempty"`
	Cost          *float64 `json:"cost"`
	Error         string   `json:"error,omitempty"`
}

// String renders the message as JSON.
func (m StatusMessage) String() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func parseStatus(resp *api.JobResponse) (Status, error) {
	state, ok := statusMap[resp.Status]
	if !ok {
		return Status{}, fmt.Errorf("unknown job status %q", resp.Status)
	}
	cost, err := parseCost(resp.Cost)
	if err != nil {
		return Status{}, err
	}
	return Status{
		State: state,
		Message: StatusMessage{
			Name:          resp.Name,
			SubmitDate:    resp.SubmitDate,
			ResultDate:    resp.ResultDate,
			QueuePosition: resp.QueuePosition,
			Cost:          cost,
			Error:         errorText(resp.Error),
		},
	}, nil
}

// parseCost accepts a number, a numeric string or null.
func parseCost(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode cost: %w", err)
	}
	switch c := v.(type) {
	case float64:
		return &c, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("decode cost %q: %w", c, err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("decode cost: unexpected %s", raw)
	}
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
