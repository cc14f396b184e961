package backend

import (
	"context"
	"fmt"
	"maps"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/logging"
)

// StartBatch submits the first job of a batch capped at maxCost. The new
// job's status is queried once before returning so the service knows the
// batch head by the time AddToBatch references it.
func (b *Backend) StartBatch(ctx context.Context, maxCost int, c *circuit.Circuit, shots int, opts RunOptions) (Handle, error) {
	if err := b.checkBatchable(ctx); err != nil {
		return Handle{}, err
	}
	opts.RequestOptions = withRequestOptions(opts.RequestOptions, map[string]any{batchExecKey: maxCost})

	hs, err := b.process(ctx, []*circuit.Circuit{c}, []int{shots}, opts, batchRef{start: true})
	if err != nil {
		return Handle{}, err
	}
	h := hs[0]

	if _, err := b.CircuitStatus(ctx, h); err != nil {
		return h, fmt.Errorf("confirm batch head: %w", err)
	}
	b.metrics.IncBatchesStarted(b.cfg.Device)
	logging.BatchLogger(b.cfg.Device, h.JobID).Info("batch started", "max_cost", maxCost)
	return h, nil
}

// AddToBatch submits a job into the batch headed by head. end closes the
// batch.
func (b *Backend) AddToBatch(ctx context.Context, head Handle, c *circuit.Circuit, shots int, end bool, opts RunOptions) (Handle, error) {
	if err := b.checkBatchable(ctx); err != nil {
		return Handle{}, err
	}
	extra := map[string]any{batchExecKey: head.JobID}
	if end {
		extra[batchEndKey] = true
	}
	opts.RequestOptions = withRequestOptions(opts.RequestOptions, extra)

	hs, err := b.process(ctx, []*circuit.Circuit{c}, []int{shots}, opts, batchRef{head: head.JobID})
	if err != nil {
		return Handle{}, err
	}
	if end {
		logging.BatchLogger(b.cfg.Device, head.JobID).Info("batch closed", "last_job", hs[0].JobID)
	}
	return hs[0], nil
}

func (b *Backend) checkBatchable(ctx context.Context) error {
	d, err := b.DeviceInfo(ctx)
	if err != nil {
		return err
	}
	if !d.Capabilities.Batching {
		return fmt.Errorf("%w: %s", ErrBatchingUnsupported, d.Name)
	}
	return nil
}

// withRequestOptions returns a copy of base with extra laid over it.
func withRequestOptions(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	maps.Copy(out, base)
	maps.Copy(out, extra)
	return out
}
