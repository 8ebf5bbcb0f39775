package metrics

import (
	"context"
	"log/slog"

	"github.com/latvis980/adu/internal/domain"
	"github.com/latvis980/adu/internal/ports"
)

// LogSink exports per-run throttle statistics as structured log records. Run
// stats are ephemeral; the log stream is their only durable trace.
type LogSink struct {
	logger *slog.Logger
}

var _ ports.MetricsSink = (*LogSink)(nil)

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record emits one log record per source run.
func (s *LogSink) Record(_ context.Context, stats domain.RunStats) error {
	s.logger.Info("run stats",
		"run_id", stats.RunID.String(),
		"source", stats.SourceID,
		"started_at", stats.StartedAt,
		"discovered", stats.Discovered,
		"new", stats.New,
		"processed", stats.Processed,
		"skipped_old", stats.SkippedOld,
		"skipped_no_link", stats.SkippedNoLink)
	return nil
}
