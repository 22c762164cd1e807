package audit

import (
	"context"
	"log/slog"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "audit",
		"event_id", e.ID,
		"action", string(e.Action),
		"primary_entity_id", e.PrimaryEntityID,
		"owner_key", e.OwnerKey,
		"request_id", e.RequestID,
		"timestamp", e.Timestamp,
	)
	return nil
}
