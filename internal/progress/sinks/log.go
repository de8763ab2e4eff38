// Package sinks provides progress.Sink implementations for the console.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ndtworks/tubescan/internal/progress"
)

// LogSink emits structured logs for each progress event. Useful during
// development and for headless simulation runs.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.String("kind", string(evt.Kind)),
		}
		if evt.HoleID != "" {
			fields = append(fields, zap.String("hole_id", evt.HoleID))
		}
		if evt.Status != "" {
			fields = append(fields, zap.String("status", string(evt.Status)))
		}
		if evt.Sector != 0 {
			fields = append(fields, zap.Stringer("sector", evt.Sector))
		}
		if evt.BatchID != 0 {
			fields = append(fields, zap.Int64("batch_id", evt.BatchID))
		}
		if evt.Units != 0 {
			fields = append(fields, zap.Int("units", evt.Units))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
