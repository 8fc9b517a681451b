package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeRegistry is a Redis-backed implementation of app.CodeRegistry. Claims are
// SET NX markers so several processes sharing a Redis never hand out the same code.
// The TTL bounds how long a code leaks if its session is never finished.
type CodeRegistry struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewCodeRegistry(client *redis.Client, ttl time.Duration, prefix string) *CodeRegistry {
	return &CodeRegistry{client: client, ttl: ttl, prefix: prefix}
}

func (r *CodeRegistry) Claim(ctx context.Context, code string) (bool, error) {
	return r.client.SetNX(ctx, r.key(code), "1", r.ttl).Result()
}

func (r *CodeRegistry) Release(ctx context.Context, code string) error {
	return r.client.Del(ctx, r.key(code)).Err()
}

func (r *CodeRegistry) key(code string) string {
	return r.prefix + "session:code:" + code
}
