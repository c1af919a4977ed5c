package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"internet-banking-core/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const defaultStreamMaxLen = 100_000

// StreamPublisher implements ports.EventPublisher by appending events to a
// Redis stream. Each entry carries the event type and its JSON payload.
type StreamPublisher struct {
	client *goredis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *goredis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: defaultStreamMaxLen,
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}

	err = p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(event.EventType()),
			"payload": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", p.stream, err)
	}
	return nil
}
