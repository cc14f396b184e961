package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/api"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/events"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/results"
)

// ResultOptions bound a single Result call. Zero fields use the session
// defaults; other calls are unaffected.
type ResultOptions struct {
	Timeout time.Duration
	Wait    time.Duration
}

// CircuitStatus queries the job's status. An unauthorized response triggers
// one fresh login and one retry. A completed response that carries results
// fills the cache, so a following Result call needs no request.
func (b *Backend) CircuitStatus(ctx context.Context, h Handle) (Status, error) {
	if b.cfg.MachineDebug || h.IsDebug() {
		return Status{State: StatusCompleted}, nil
	}

	resp, err := b.session.JobStatus(ctx, h.JobID)
	if isUnauthorized(err) {
		b.metrics.IncReauthentications()
		b.log.Info("status query unauthorized, logging in again", "job_id", h.JobID)
		if lerr := b.session.Login(ctx); lerr != nil {
			return Status{}, &JobError{Handle: h, Err: fmt.Errorf("re-login: %w", lerr)}
		}
		resp, err = b.session.JobStatus(ctx, h.JobID)
	}
	if err != nil {
		return Status{}, &JobError{Handle: h, Err: fmt.Errorf("query status: %w", err)}
	}

	st, err := parseStatus(resp)
	if err != nil {
		return Status{}, &JobError{Handle: h, Err: err}
	}
	b.metrics.IncStatusPolls(b.cfg.Device, string(st.State))

	if st.State == StatusCompleted && resp.Results != nil {
		if _, err := b.fill(ctx, h, resp, st); err != nil {
			return Status{}, err
		}
	} else if st.State.Terminal() {
		b.report(ctx, h, st, resp.Status)
	}
	return st, nil
}

// Result returns the decoded result of h, waiting for the job if needed.
// Cached results are returned without a request. Debug handles yield an
// all-zero table sized from the marker.
func (b *Backend) Result(ctx context.Context, h Handle, opts ResultOptions) (*results.Result, error) {
	if e, _ := b.cache.Lookup(ctx, h.key()); e.Ready() {
		b.metrics.ObserveCacheLookup(true)
		return e.Result, nil
	}
	b.metrics.ObserveCacheLookup(false)

	if b.cfg.MachineDebug || h.IsDebug() {
		shots, width, err := parseDebugMarker(h.JobID)
		if err != nil {
			return nil, &JobError{Handle: h, Err: fmt.Errorf("%w: %w", ErrResultRetrievalFailed, err)}
		}
		return &results.Result{Shots: results.Zeros(shots, width), PostProcess: h.PostProcessJSON()}, nil
	}

	start := time.Now()
	resp, err := b.session.RetrieveJob(ctx, h.JobID, api.WaitOptions{Timeout: opts.Timeout, RetryInterval: opts.Wait})
	b.metrics.ObserveResultFetchDuration(b.cfg.Device, time.Since(start).Seconds())
	if err != nil {
		return nil, &JobError{Handle: h, Err: fmt.Errorf("retrieve job: %w", err)}
	}

	st, err := parseStatus(resp)
	if err != nil {
		return nil, &JobError{Handle: h, Err: err}
	}
	if st.State != StatusCompleted && st.State != StatusCancelled {
		b.report(ctx, h, st, resp.Status)
		return nil, &JobError{Handle: h, Err: fmt.Errorf("%w: job status is %s %s", ErrResultRetrievalFailed, st.State, st.Message)}
	}
	if resp.Results == nil {
		return nil, &JobError{Handle: h, Err: fmt.Errorf("%w: results missing from %s response", ErrResultRetrievalFailed, st.State)}
	}
	return b.fill(ctx, h, resp, st)
}

// Results fetches each handle's result in order.
func (b *Backend) Results(ctx context.Context, handles []Handle, opts ResultOptions) ([]*results.Result, error) {
	out := make([]*results.Result, 0, len(handles))
	for _, h := range handles {
		res, err := b.Result(ctx, h, opts)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Cancel asks the service to cancel the job and returns without waiting.
// A job that already finished is not an error.
func (b *Backend) Cancel(ctx context.Context, h Handle) error {
	if b.cfg.MachineDebug || h.IsDebug() {
		return nil
	}
	err := b.session.CancelJob(ctx, h.JobID)
	if errors.Is(err, api.ErrJobAlreadyFinished) {
		b.log.Debug("cancel ignored, job already finished", "job_id", h.JobID)
		return nil
	}
	if err != nil {
		return &JobError{Handle: h, Err: fmt.Errorf("cancel: %w", err)}
	}

	b.metrics.IncCancellations(b.cfg.Device)
	if err := b.events.EmitJob(ctx, events.Event{
		Kind:   events.KindCancelRequested,
		JobID:  h.JobID,
		Device: b.cfg.Device,
	}); err != nil {
		b.log.Warn("failed to emit cancel event", "job_id", h.JobID, "error", err)
	}
	return nil
}

// fill decodes a terminal response and stores it in the cache.
func (b *Backend) fill(ctx context.Context, h Handle, resp *api.JobResponse, st Status) (*results.Result, error) {
	table, err := results.Decode(resp.Results)
	if err != nil {
		return nil, &JobError{Handle: h, Err: fmt.Errorf("%w: %w", ErrResultRetrievalFailed, err)}
	}
	res := results.Result{Shots: table, PostProcess: h.PostProcessJSON()}
	if err := b.cache.Put(ctx, h.key(), res); err != nil {
		b.log.Warn("failed to persist result", "job_id", h.JobID, "error", err)
	}
	b.report(ctx, h, st, resp.Status)
	return &res, nil
}

// report records a terminal state once per handle. A job still canceling
// is not final: the cancellation may lose the race and the job complete.
func (b *Backend) report(ctx context.Context, h Handle, st Status, remote string) {
	if remote == api.StatusCanceling {
		return
	}
	b.mu.Lock()
	if _, seen := b.reported[h.key()]; seen {
		b.mu.Unlock()
		return
	}
	b.reported[h.key()] = st.State
	b.mu.Unlock()

	if err := b.catalog.RecordStatus(ctx, h.JobID, string(st.State), st.Message.Cost); err != nil {
		b.log.Warn("failed to record status", "job_id", h.JobID, "error", err)
	}
	if err := b.journal.Remove(ctx, h.JobID); err != nil {
		b.log.Debug("handle not in journal", "job_id", h.JobID, "error", err)
	}

	kind := events.KindCompleted
	switch st.State {
	case StatusError:
		kind = events.KindFailed
	case StatusCancelled:
		kind = events.KindCancelled
	}
	if err := b.events.EmitJob(ctx, events.Event{
		Kind:   kind,
		JobID:  h.JobID,
		Device: b.cfg.Device,
		Status: string(st.State),
		Cost:   st.Message.Cost,
	}); err != nil {
		b.log.Warn("failed to emit status event", "job_id", h.JobID, "error", err)
	}
}
