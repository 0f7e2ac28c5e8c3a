package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/config"
)

// Redis wraps the go-redis client backing the distributed lock.
type Redis struct {
	Client redis.UniversalClient
}

// NewRedis connects to Redis. REDIS_ADDR may list several comma separated
// nodes, in which case a cluster client is built. The lock backend cannot work
// without Redis, so an unreachable server is an error.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	addrs := splitAddrs(cfg.Addr)
	if len(addrs) == 0 {
		return nil, errors.New("REDIS_ADDR is required for the redis lock backend")
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	logger.Info("connected to redis", zap.Strings("addrs", addrs), zap.Int("db", cfg.DB))
	return &Redis{Client: client}, nil
}

func splitAddrs(raw string) []string {
	var addrs []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
