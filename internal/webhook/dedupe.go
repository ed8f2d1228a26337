package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryTTL is how long a claimed event id is remembered. Providers stop retrying well
// within it.
const DeliveryTTL = 72 * time.Hour

// RedisDeduper remembers which provider events have been taken in, so redeliveries are
// acknowledged without being processed twice.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{
		client: client,
		ttl:    DeliveryTTL,
	}
}

// Claim records eventID and reports whether this call was the first to see it.
func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, deliveryKey(eventID), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Release forgets eventID so a redelivery is processed again.
func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, deliveryKey(eventID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func deliveryKey(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}
