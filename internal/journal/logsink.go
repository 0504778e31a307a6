package journal

import (
	"context"

	"go.uber.org/zap"
)

// LogSink пишет журнал в zap, когда база не настроена.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("refresh-journal")}
}

func (s *LogSink) WriteBatch(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		s.logger.Info("tab refresh",
			zap.String("id", e.ID),
			zap.String("tab", e.Tab),
			zap.String("reason", e.Reason),
			zap.String("outcome", e.Outcome),
			zap.String("error", e.Error),
			zap.Float64("fetch_ms", e.FetchMs),
			zap.Float64("render_ms", e.RenderMs),
			zap.Time("at", e.At))
	}
	return nil
}
