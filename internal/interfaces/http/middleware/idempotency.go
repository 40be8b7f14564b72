package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultIdempotencyHeader names the request header carrying the key
const DefaultIdempotencyHeader = "Idempotency-Key"

// MaxIdempotencyKeyLength bounds client-supplied keys
const MaxIdempotencyKeyLength = 255

// IdempotencyConfig configures the Idempotency middleware
type IdempotencyConfig struct {
	Store  shared.IdempotencyStore
	Header string
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency rejects a request whose key was already used by the same tenant
// on the same route within the TTL. Requests without a key pass through.
// A request that ends with an error status releases its key so it can be retried.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.Header == "" {
		cfg.Header = DefaultIdempotencyHeader
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := c.GetHeader(cfg.Header)
		if key == "" || cfg.Store == nil {
			c.Next()
			return
		}
		if len(key) > MaxIdempotencyKeyLength {
			abort(c, http.StatusBadRequest, dto.ErrCodeBadRequest, cfg.Header+" header is too long")
			return
		}

		ctx := c.Request.Context()
		log := logger.Enrich(ctx, cfg.Logger)
		scoped := TenantID(c).String() + ":" + c.FullPath() + ":" + key

		fresh, err := cfg.Store.MarkProcessed(ctx, scoped, cfg.TTL)
		if err != nil {
			log.Warn("Idempotency store unavailable, processing without key", zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			log.Info("Duplicate request rejected", zap.String("idempotency_key", key))
			abort(c, http.StatusConflict, dto.ErrCodeAlreadyExists, "A request with this idempotency key was already processed")
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			// the request may have been cancelled; releasing the key must not be
			forgetCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := cfg.Store.Forget(forgetCtx, scoped); err != nil {
				log.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
