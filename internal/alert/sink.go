package alert

import (
	"context"
	"log/slog"
)

// LogSink writes notifications to the structured log. Default sink when no
// external delivery mechanism is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "log-sink")}
}

func (s *LogSink) Dispatch(_ context.Context, n Notification) error {
	s.logger.Info("ALERT",
		"keyword", n.Keyword,
		"title", n.Title,
		"source", n.Source,
		"url", n.URL,
		"event_id", n.EventID,
	)
	return nil
}
