package cache

import (
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a Redis-backed store when a client is given and
// an in-memory one otherwise.
func NewIdempotencyStore(client *redis.Client, logger *zap.Logger) shared.IdempotencyStore {
	if client != nil {
		logger.Info("Using Redis idempotency store")
		return NewRedisIdempotencyStore(client, DefaultKeyPrefix)
	}
	logger.Warn("Redis disabled, using in-memory idempotency store; keys are not shared between instances")
	return NewInMemoryIdempotencyStore()
}
