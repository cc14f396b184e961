// Package logging configures slog and hands out scoped loggers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/config"
)

// Setup installs the process-wide logger. Logs go to stderr so command
// output on stdout stays machine readable.
func Setup(cfg config.LoggingConfig) {
	slog.SetDefault(New(os.Stderr, cfg))
}

// New builds a logger writing to w in the configured format and level.
func New(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type correlationIDKey struct{}

// WithCorrelationID tags ctx so every job logged under it can be grouped
// back to one invocation.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateCorrelationID returns a short random id.
func GenerateCorrelationID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}

// JobLogger scopes a logger to one submitted job.
func JobLogger(correlationID, device, jobID string) *slog.Logger {
	l := slog.With("device", device, "job_id", jobID)
	if correlationID != "" {
		l = l.With("correlation_id", correlationID)
	}
	return l
}

// BatchLogger scopes a logger to one batch, identified by its head job.
func BatchLogger(device, batchHead string) *slog.Logger {
	return slog.With("device", device, "batch_head", batchHead)
}

// Component returns a logger tagged with a package name.
func Component(name string) *slog.Logger {
	return slog.With("component", name)
}
