package events

import (
	"context"
	"log"
	"time"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
)

const eventVersion = "1.0"

// Event is the simplified event passed in by the backend. It is converted to
// a JobEvent before emission.
type Event struct {
	Kind      Kind
	JobID     string
	Device    string
	Status    string
	Shots     int
	BatchHead string
	Cost      *float64
}

// Emitter is the interface for job event emission.
type Emitter interface {
	EmitJob(ctx context.Context, evt Event) error
	Close() error
}

// Producer is stamped on every emitted event.
var Producer = ProducerInfo{Name: "quantum-backend", Version: "dev"}

// NewEmitter creates an appropriate emitter based on configuration.
func NewEmitter(cfg config.EventsConfig) Emitter {
	if !cfg.Enabled {
		log.Println("[events] disabled, using no-op emitter")
		return NoopEmitter{}
	}

	if cfg.Endpoint != "" {
		emitter, err := NewHTTPEmitter(cfg)
		if err != nil {
			log.Printf("[events] failed to create HTTP emitter: %v, falling back to file-only", err)
			return createFileOnlyEmitter(cfg)
		}
		log.Printf("[events] using HTTP emitter -> %s", cfg.Endpoint)
		return &httpEmitterWrapper{emitter: emitter}
	}

	return createFileOnlyEmitter(cfg)
}

func createFileOnlyEmitter(cfg config.EventsConfig) Emitter {
	emitter, err := NewFileOnlyEmitter(cfg.BackupDir)
	if err != nil {
		log.Printf("[events] failed to create file emitter: %v, using no-op", err)
		return NoopEmitter{}
	}
	log.Printf("[events] using file-only emitter -> %s", cfg.BackupDir)
	return &fileOnlyEmitterWrapper{emitter: emitter}
}

// httpEmitterWrapper adapts HTTPEmitter to the Emitter interface.
type httpEmitterWrapper struct {
	emitter *HTTPEmitter
}

func (w *httpEmitterWrapper) EmitJob(ctx context.Context, evt Event) error {
	jobEvent := convertToJobEvent(evt)
	return w.emitter.Emit(ctx, &jobEvent)
}

func (w *httpEmitterWrapper) Close() error {
	return w.emitter.Close()
}

// fileOnlyEmitterWrapper adapts FileOnlyEmitter to the Emitter interface.
type fileOnlyEmitterWrapper struct {
	emitter *FileOnlyEmitter
}

func (w *fileOnlyEmitterWrapper) EmitJob(_ context.Context, evt Event) error {
	jobEvent := convertToJobEvent(evt)
	return w.emitter.Emit(&jobEvent)
}

func (w *fileOnlyEmitterWrapper) Close() error {
	return w.emitter.Close()
}

func convertToJobEvent(evt Event) JobEvent {
	return JobEvent{
		Version:   eventVersion,
		Kind:      evt.Kind,
		Timestamp: time.Now().UTC(),
		Job: JobInfo{
			JobID:     evt.JobID,
			Device:    evt.Device,
			Status:    evt.Status,
			Shots:     evt.Shots,
			BatchHead: evt.BatchHead,
			Cost:      evt.Cost,
		},
		Producer: Producer,
	}
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) EmitJob(context.Context, Event) error { return nil }

func (NoopEmitter) Close() error { return nil }
