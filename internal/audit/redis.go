package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink appends events to a Redis stream.
type RedisSink struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewRedisSink(client redis.Cmdable, stream string) *RedisSink {
	return &RedisSink{client: client, stream: stream, maxLen: 100_000}
}

func (s *RedisSink) Emit(ctx context.Context, e Event) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":                e.ID,
			"action":            string(e.Action),
			"primary_entity_id": e.PrimaryEntityID,
			"owner_key":         e.OwnerKey,
			"request_id":        e.RequestID,
			"timestamp":         e.Timestamp.Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}
