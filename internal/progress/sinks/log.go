package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/postshelf/internal/progress"
)

// LogSink emits structured logs for render progress. Strategy and start events
// log at debug; completed renders log at info, or warn when they failed.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
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
			zap.String("attempt_id", evt.AttemptUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.RecordID != "" {
			fields = append(fields, zap.String("record_id", evt.RecordID), zap.String("mode", evt.Mode))
		}
		if evt.Strategy != "" {
			fields = append(fields, zap.String("strategy", evt.Strategy))
		}
		if evt.State != "" {
			fields = append(fields, zap.String("state", evt.State))
		}
		if evt.Stage == progress.StageBoardBuilt {
			fields = append(fields, zap.Int("containers", evt.Count))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt), "render progress", fields...)
	}
	return nil
}

func levelFor(evt progress.Event) zapcore.Level {
	switch evt.Stage {
	case progress.StageRenderDone:
		if evt.State == "succeeded" || evt.State == "canceled" {
			return zapcore.InfoLevel
		}
		return zapcore.WarnLevel
	case progress.StageBoardBuilt:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
