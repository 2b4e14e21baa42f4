package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-accounts/internal/config"
)

const redisConnectTimeout = 2 * time.Second

// Redis wraps the go-redis client together with the service key namespace.
type Redis struct {
	Client    *redis.Client
	addr      string
	keyPrefix string
}

// NewRedis connects to Redis using the provided configuration. An unreachable
// server is logged, not fatal: revocation checks fail open until it returns.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r := &Redis{Client: client, addr: cfg.Addr, keyPrefix: cfg.KeyPrefix}

	fields := []zap.Field{
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("key_prefix", cfg.KeyPrefix),
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := r.Ping(ctx); err != nil {
		logger.Warn("unable to reach redis; token revocation degraded", append(fields, zap.Error(err))...)
	} else {
		logger.Info("connected to redis", fields...)
	}
	return r
}

// Namespace returns the key prefix for one family of keys, e.g. "revoked-tokens".
func (r *Redis) Namespace(name string) string {
	if r == nil {
		return name + ":"
	}
	return r.keyPrefix + name + ":"
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity for the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", r.addr, err)
	}
	return nil
}
