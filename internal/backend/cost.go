package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/circuit"
)

// Cost quotes the price of running c for shots on this device by running
// it on the device's syntax checker. syntaxChecker overrides the checker
// named in the device listing. A nil cost means the service reported none.
func (b *Backend) Cost(ctx context.Context, c *circuit.Circuit, shots int, syntaxChecker string) (*float64, error) {
	failed, err := b.failedPredicates(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("%w: compile the circuit first (fails %v)", ErrInvalidCircuit, failed)
	}

	if syntaxChecker == "" {
		d, err := b.DeviceInfo(ctx)
		if err != nil {
			return nil, err
		}
		syntaxChecker = d.Capabilities.SyntaxChecker
	}
	if syntaxChecker == "" {
		return nil, fmt.Errorf("%w: %s; set the syntax checker explicitly", ErrNoSyntaxChecker, b.cfg.Device)
	}

	checker := b.derive(syntaxChecker)
	h, err := checker.ProcessCircuit(ctx, c, shots, RunOptions{})
	if errors.Is(err, ErrDeviceUnavailable) {
		return nil, fmt.Errorf("%w: cannot find syntax checker %s for device %s; set it explicitly, "+
			"choosing a specific device's checker for device families (e.g. H1-1SC rather than H1SC): %w",
			ErrConfiguration, syntaxChecker, b.cfg.Device, err)
	}
	if err != nil {
		return nil, err
	}

	if _, err := checker.Result(ctx, h, ResultOptions{}); err != nil {
		return nil, err
	}
	st, err := checker.CircuitStatus(ctx, h)
	if err != nil {
		return nil, err
	}
	return st.Message.Cost, nil
}
