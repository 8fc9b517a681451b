package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trivia-engine/internal/broadcast"
)

// EventPublisher mirrors session events onto Redis pub/sub channels named
// {prefix}session:{code}, so dashboards or other processes can follow a game.
type EventPublisher struct {
	client *redis.Client
	prefix string
}

func NewEventPublisher(client *redis.Client, prefix string) *EventPublisher {
	return &EventPublisher{client: client, prefix: prefix}
}

func (p *EventPublisher) Publish(ctx context.Context, code string, e broadcast.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.Publish(ctx, p.Channel(code), payload).Err()
}

func (p *EventPublisher) Channel(code string) string {
	return p.prefix + "session:" + code
}
