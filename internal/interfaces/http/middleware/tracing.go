package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request through otelgin
func Tracing(serviceName string, skipPaths ...string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		for _, p := range skipPaths {
			if r.URL.Path == p || strings.HasPrefix(r.URL.Path, p+"/") {
				return false
			}
		}
		return true
	}))
}

// SpanEnricher adds request, tenant and user attributes to the current span
// and marks it as failed on 5xx. Place it after Authenticate.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := GetRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if id := TenantID(c); id != uuid.Nil {
				span.SetAttributes(attribute.String(telemetry.SpanAttrTenantID, id.String()))
			}
			if id := ActorID(c); id != uuid.Nil {
				span.SetAttributes(attribute.String("user_id", id.String()))
			}
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError && span.IsRecording() {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// Profiling labels the CPU and allocation samples taken while serving a
// request with its route, method and tenant.
func Profiling() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}
		labels := []string{"route", route, "method", c.Request.Method}
		if id := TenantID(c); id != uuid.Nil {
			labels = append(labels, "tenant_id", id.String())
		}
		telemetry.WithProfileLabels(c.Request.Context(), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		}, labels...)
	}
}
