package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Remote job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCanceling = "canceling"
	StatusCanceled  = "canceled"
)

// Terminal reports whether status is final.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// JobResponse is the service's view of a job.
type JobResponse struct {
	Job           string              `json:"job,omitempty"`
	Status        string              `json:"status"`
	Results       map[string][]string `json:"results,omitempty"`
	Name          string              `json:"name,omitempty"`
	SubmitDate    string              `json:"submit-date,omitempty"`
	ResultDate    string              `json:"result-date,omitempty"`
	QueuePosition *int                `json:"queue-position,omitempty"`
	Cost          json.RawMessage     `json:"cost,omitempty"`
	Error         json.RawMessage     `json:"error,omitempty"`
}

// WaitOptions bounds a single RetrieveJob call. Zero fields take the session
// defaults for that call only.
type WaitOptions struct {
	Timeout       time.Duration
	RetryInterval time.Duration
}

func (s *Session) resolveWait(opts WaitOptions) WaitOptions {
	if opts.Timeout <= 0 {
		opts.Timeout = s.defaults.Timeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = s.defaults.RetryInterval
	}
	return opts
}

// SubmitJob posts a job body and returns the new job id.
func (s *Session) SubmitJob(ctx context.Context, body map[string]any) (string, error) {
	var resp struct {
		Job   string          `json:"job"`
		Error json.RawMessage `json:"error,omitempty"`
	}
	if err := s.do(ctx, http.MethodPost, "job", body, &resp); err != nil {
		return "", err
	}
	if resp.Job == "" {
		msg := strings.TrimSpace(string(resp.Error))
		if msg == "" {
			msg = "response carried no job id"
		}
		return "", &RemoteError{StatusCode: http.StatusOK, Message: msg}
	}
	return resp.Job, nil
}

// JobStatus fetches the current state of a job.
func (s *Session) JobStatus(ctx context.Context, jobID string) (*JobResponse, error) {
	var resp JobResponse
	if err := s.do(ctx, http.MethodGet, "job/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &resp, nil
}

// RetrieveJob polls a job until it is terminal or the wait runs out.
func (s *Session) RetrieveJob(ctx context.Context, jobID string, opts WaitOptions) (*JobResponse, error) {
	opts = s.resolveWait(opts)
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(opts.RetryInterval)
	defer ticker.Stop()

	for {
		resp, err := s.JobStatus(ctx, jobID)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && opts.Timeout > 0 {
				return nil, fmt.Errorf("%w %s after %s", ErrWaitTimeout, jobID, opts.Timeout)
			}
			return nil, err
		}
		if Terminal(resp.Status) {
			return resp, nil
		}
		s.log.Debug("job not finished", "job_id", jobID, "status", resp.Status)

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && opts.Timeout > 0 {
				return nil, fmt.Errorf("%w %s after %s", ErrWaitTimeout, jobID, opts.Timeout)
			}
			return nil, fmt.Errorf("wait for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// CancelJob requests cancellation. It does not wait for the job to stop.
func (s *Session) CancelJob(ctx context.Context, jobID string) error {
	err := s.do(ctx, http.MethodPost, "job/"+url.PathEscape(jobID)+"/cancel", nil, nil)
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) && alreadyFinished(re.Message) {
		return fmt.Errorf("cancel job %s: %w: %s", jobID, ErrJobAlreadyFinished, re.Message)
	}
	return fmt.Errorf("cancel job %s: %w", jobID, err)
}

func alreadyFinished(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "already") &&
		(strings.Contains(msg, "complete") || strings.Contains(msg, "finish") || strings.Contains(msg, "cancel"))
}
