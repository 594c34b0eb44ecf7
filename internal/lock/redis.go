package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"nfse-pipeline/pkg/logger"
)

type RedisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisLocker{
		rdb:    rdb,
		ttl:    ttl,
		logger: log,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, saleID string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key(saleID), "1", l.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, saleID string) {
	if err := l.rdb.Del(ctx, key(saleID)).Err(); err != nil {
		l.logger.Warn(ctx, "Failed to release sale lock, TTL will expire it",
			"sale_id", saleID,
			"error", err,
		)
	}
}
