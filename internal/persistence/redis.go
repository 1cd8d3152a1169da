package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// ErrRedisDisabled is returned by Ping when no address was configured.
var ErrRedisDisabled = errors.New("redis client not configured")

// Redis wraps the go-redis client behind the assignment directory cache.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client for cfg.Addr. An unreachable server is logged but
// not fatal: the directory cache falls through to the user store until Redis
// answers. An empty address disables the cache.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR not provided; directory cache disabled")
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	fields := []zap.Field{zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB)}
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; directory lookups go to the user store", append(fields, zap.Error(err))...)
	} else {
		logger.Info("connected to redis", fields...)
	}
	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// ClientHandle returns the underlying client, nil when Redis is disabled.
func (r *Redis) ClientHandle() *redis.Client {
	if r == nil {
		return nil
	}
	return r.Client
}

// Ping verifies Redis connectivity for the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r.ClientHandle() == nil {
		return ErrRedisDisabled
	}
	return r.Client.Ping(ctx).Err()
}
