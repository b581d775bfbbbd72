package cache

import (
	"context"
	"time"

	"github.com/openbuilders/synapse-batch/internal/helpers"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "synapse-batch:job:"

// Client is the part of the redis client the deduplicator needs.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Deduplicator remembers transaction jobs for a TTL so that redelivered queue
// messages are not batched twice.
type Deduplicator struct {
	client Client
	ttl    time.Duration
}

func NewDeduplicator(client Client, ttl time.Duration) *Deduplicator {
	return &Deduplicator{
		client: client,
		ttl:    ttl,
	}
}

// Seen marks the job of the node and reports whether it was marked already.
func (d *Deduplicator) Seen(ctx context.Context, nodeID, jobID string) (bool, error) {
	created, err := d.client.SetNX(ctx, Key(nodeID, jobID), 1, d.ttl).Result()
	if err != nil {
		return false, err
	}

	return !created, nil
}

// Forget removes the mark of a job that was not taken, so that its
// redelivery isn't skipped.
func (d *Deduplicator) Forget(ctx context.Context, nodeID, jobID string) error {
	return d.client.Del(ctx, Key(nodeID, jobID)).Err()
}

func (d *Deduplicator) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func Key(nodeID, jobID string) string {
	return keyPrefix + helpers.TinyHash(nodeID, jobID)
}
