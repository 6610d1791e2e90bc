package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eventhub/api/models"
)

const trendingKeyPrefix = "categories:trending:"

// RedisTrendingCache caches ranked trending lists per requested limit.
type RedisTrendingCache struct {
	client *redis.Client
}

func NewRedisTrendingCache(client *redis.Client) *RedisTrendingCache {
	return &RedisTrendingCache{client: client}
}

func (c *RedisTrendingCache) GetTrending(ctx context.Context, limit int) ([]models.TrendingCategory, bool, error) {
	raw, err := c.client.Get(ctx, fmt.Sprintf("%s%d", trendingKeyPrefix, limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out []models.TrendingCategory
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c *RedisTrendingCache) SetTrending(ctx context.Context, limit int, items []models.TrendingCategory, ttl time.Duration) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, fmt.Sprintf("%s%d", trendingKeyPrefix, limit), raw, ttl).Err()
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a best-effort distributed mutex built on SET NX PX.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.client, []string{"lock:" + key}, token)
	}
	return release, true, nil
}
