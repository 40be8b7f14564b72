package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys so a retried request is not
// processed twice within the TTL.
type IdempotencyStore interface {
	// MarkProcessed records the key. It returns true if the key was newly
	// recorded and false if it had already been seen.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a key has already been recorded
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes a key so the request may be retried
	Forget(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}
