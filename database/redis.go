package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"eventhub/api/logger"
)

type RedisClient struct {
	Client *redis.Client
	log    *logger.Logger
}

// NewRedis accepts either a redis:// URL or a bare host:port.
func NewRedis(ctx context.Context, addr string, log *logger.Logger) (*RedisClient, error) {
	log = log.With("component", "Redis")
	var client *redis.Client
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	log.Info("Connected to Redis", "addr", addr)
	return &RedisClient{Client: client, log: log}, nil
}

func (c *RedisClient) Close() {
	if c.Client == nil {
		return
	}
	if err := c.Client.Close(); err != nil {
		c.log.Error("Error closing Redis connection", "error", err)
		return
	}
	c.log.Info("Redis connection closed")
}
