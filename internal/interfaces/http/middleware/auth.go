package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/erp/invoicing/internal/infrastructure/auth"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "

	identityKey = "identity"
)

// TokenVerifier validates a bearer token
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Authenticate requires a valid bearer token. The verified tenant and user
// are stored in the gin context and in the request context, where services
// and the context logger pick them up.
func Authenticate(verifier TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abort(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			abort(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abort(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing token")
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			logger.Enrich(c.Request.Context(), log).Debug("Token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err),
			)
			if errors.Is(err, auth.ErrExpiredToken) {
				abort(c, http.StatusUnauthorized, dto.ErrCodeTokenExpired, "Token has expired")
				return
			}
			abort(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Invalid token")
			return
		}

		c.Set(identityKey, identity)
		ctx := logger.WithTenant(c.Request.Context(), identity.TenantID)
		ctx = logger.WithActor(ctx, identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetIdentity returns the identity verified by Authenticate
func GetIdentity(c *gin.Context) (*auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*auth.Identity)
	return identity, ok
}

// TenantID returns the authenticated tenant, or uuid.Nil
func TenantID(c *gin.Context) uuid.UUID {
	if identity, ok := GetIdentity(c); ok {
		return identity.TenantID
	}
	return uuid.Nil
}

// ActorID returns the authenticated user, or uuid.Nil
func ActorID(c *gin.Context) uuid.UUID {
	if identity, ok := GetIdentity(c); ok {
		return identity.UserID
	}
	return uuid.Nil
}
