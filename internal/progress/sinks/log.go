package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/origin-crawler/internal/progress"
)

// LogSink writes each event as a structured log line. Fetch events are
// logged at debug level so large crawls stay quiet by default.
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

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level := zapcore.DebugLevel
		switch evt.Stage {
		case progress.StageCrawlStart, progress.StageCrawlDone:
			level = zapcore.InfoLevel
		case progress.StageCrawlError:
			level = zapcore.WarnLevel
		}
		s.logger.Log(level, "progress event",
			zap.String("crawl_id", evt.CrawlID),
			zap.String("stage", string(evt.Stage)),
			zap.String("origin", evt.Origin),
			zap.String("node", evt.Node),
			zap.Int("depth", evt.Depth),
			zap.Int("neighbors", evt.Neighbors),
			zap.Int("nodes", evt.Nodes),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
