package stores

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// globalKey is the hash holding system-wide counters (nextPid, postCount).
const globalKey = "global"

// KeyValue implements the pipeline's atomic key-value primitives on Redis:
// HINCRBY for counters and id allocation, ZADD for time-ordered indexes.
type KeyValue struct {
	rdb *redis.Client
}

// NewKeyValue wraps a Redis client.
func NewKeyValue(rdb *redis.Client) *KeyValue {
	return &KeyValue{rdb: rdb}
}

// AllocateID atomically increments the named global counter and returns the
// new value. Concurrent callers never observe the same id.
func (k *KeyValue) AllocateID(ctx context.Context, counter string) (int64, error) {
	return k.rdb.HIncrBy(ctx, globalKey, counter, 1).Result()
}

// AddToTimeIndex inserts pid into a sorted set scored by timestamp.
func (k *KeyValue) AddToTimeIndex(ctx context.Context, index string, timestamp, pid int64) error {
	return k.rdb.ZAdd(ctx, index, redis.Z{Score: float64(timestamp), Member: pid}).Err()
}

// IncrementCounter atomically bumps a hash field and returns the new value.
func (k *KeyValue) IncrementCounter(ctx context.Context, key, field string) (int64, error) {
	return k.rdb.HIncrBy(ctx, key, field, 1).Result()
}
