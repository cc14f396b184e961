package backend

import (
	"errors"
	"fmt"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/api"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/device"
)

var (
	ErrDeviceUnavailable     = device.ErrDeviceUnavailable
	ErrConfiguration         = errors.New("backend configuration error")
	ErrShotLimitExceeded     = errors.New("shot limit exceeded")
	ErrUnsupportedFeature    = errors.New("feature not supported by device")
	ErrConnection            = api.ErrConnection
	ErrResultRetrievalFailed = errors.New("result retrieval failed")
	ErrBatchingUnsupported   = errors.New("batching not supported by device")
	ErrInvalidCircuit        = errors.New("circuit does not satisfy device predicates")
	ErrNoSyntaxChecker       = errors.New("no syntax checker for device")
)

var preflight = []error{
	ErrDeviceUnavailable,
	ErrConfiguration,
	ErrShotLimitExceeded,
	ErrUnsupportedFeature,
	ErrBatchingUnsupported,
	ErrInvalidCircuit,
	ErrNoSyntaxChecker,
}

// IsPreflight reports whether err was raised before anything was sent to
// the service. Such a call left no remote job behind.
func IsPreflight(err error) bool {
	var je *JobError
	if errors.As(err, &je) {
		return false
	}
	for _, target := range preflight {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// JobError is a failure concerning a job that exists remotely. Handle can
// still be polled later.
type JobError struct {
	Handle Handle
	Err    error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %v", e.Handle.JobID, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }
