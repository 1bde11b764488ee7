// Package audit is the gateway's event log sink. The contract is
// deliberately thin: callers report an event type, an outcome and free-form
// metadata, and the sink decides where it lands.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/hubgate/hubgate/internal/observability/logger"
)

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, eventType, outcome string, metadata map[string]any)
}

// LogRecorder writes audit events as structured log lines. Default sink;
// a datastore-backed recorder can replace it without touching callers.
type LogRecorder struct{}

func NewLogRecorder() *LogRecorder { return &LogRecorder{} }

func (LogRecorder) Record(ctx context.Context, eventType, outcome string, metadata map[string]any) {
	fields := make([]zap.Field, 0, len(metadata)+2)
	fields = append(fields,
		zap.String("audit_event", eventType),
		zap.String("outcome", outcome))
	for k, v := range metadata {
		fields = append(fields, zap.Any(k, v))
	}
	logger.From(ctx).Info("audit", fields...)
}

// Nop discards events. Test helper.
type Nop struct{}

func (Nop) Record(context.Context, string, string, map[string]any) {}
