package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/jobstore/internal/cache"
	"github.com/redis/go-redis/v9"
)

// RedisStreamSink appends messages to one Redis stream per topic.
type RedisStreamSink struct {
	client *redis.Client
	maxLen int64
}

// NewRedisStreamSink creates a sink. maxLen caps each stream approximately; zero
// leaves streams uncapped.
func NewRedisStreamSink(client *redis.Client, maxLen int64) *RedisStreamSink {
	return &RedisStreamSink{client: client, maxLen: maxLen}
}

func (s *RedisStreamSink) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: cache.EventStreamKey(msg.Topic),
		Values: map[string]any{"key": msg.Key, "message": body},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", args.Stream, err)
	}
	return nil
}

var _ Sink = (*RedisStreamSink)(nil)
