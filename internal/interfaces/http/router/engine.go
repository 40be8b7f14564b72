package router

import (
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/interfaces/http/handler"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers mounted by the engine
type Handlers struct {
	Health         *handler.HealthHandler
	Invoice        *handler.InvoiceHandler
	Payment        *handler.PaymentHandler
	Bulk           *handler.BulkHandler
	Reconciliation *handler.ReconciliationHandler
	Audit          *handler.AuditHandler
}

// Options carries the cross-cutting dependencies of the engine
type Options struct {
	HTTP           config.HTTPConfig
	ServiceName    string
	Logger         *zap.Logger
	Verifier       middleware.TokenVerifier
	BulkLimiter    *limiter.Limiter // nil disables rate limiting on bulk operations
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Tracing        bool
	Profiling      bool
}

// NewEngine builds the gin engine serving the invoicing API
func NewEngine(opts Options, h Handlers) (*gin.Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	global := []gin.HandlerFunc{logger.Recovery(log)}
	if opts.Tracing {
		global = append(global, middleware.Tracing(opts.ServiceName, "/health"))
	}
	global = append(global,
		middleware.RequestID(opts.HTTP.RequestIDHeader),
		logger.GinMiddleware(log),
		middleware.CORS(opts.HTTP),
		middleware.BodyLimit(opts.HTTP.MaxBodySize),
	)
	engine.Use(global...)

	if h.Health != nil {
		engine.GET("/health", h.Health.Check)
	}
	if opts.HTTP.SwaggerEnabled {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// the swagger UI needs scripts, so the strict headers stay on the API
	api := []gin.HandlerFunc{middleware.SecureHeaders(), middleware.Authenticate(opts.Verifier, log), middleware.SpanEnricher()}
	if opts.Profiling {
		api = append(api, middleware.Profiling())
	}
	r := NewRouter(engine, WithGroupMiddleware(api...))
	r.Register(invoiceRoutes(opts, h))
	if h.Reconciliation != nil {
		r.Register(NewDomainGroup("reconciliation", "/reconciliation").
			POST("/sweep", h.Reconciliation.Sweep).
			POST("/mark-overdue", h.Reconciliation.MarkOverdue))
	}
	if h.Audit != nil {
		r.Register(NewDomainGroup("audit", "/audit").GET("", h.Audit.List))
	}
	r.Setup()

	return engine, nil
}

func invoiceRoutes(opts Options, h Handlers) *DomainGroup {
	invoices := NewDomainGroup("invoices", "/invoices")
	if h.Invoice != nil {
		invoices.
			POST("", h.Invoice.Create).
			GET("", h.Invoice.List).
			GET("/:id", h.Invoice.Get).
			PUT("/:id", h.Invoice.Update).
			DELETE("/:id", h.Invoice.Delete).
			POST("/:id/status", h.Invoice.ChangeStatus).
			POST("/:id/finalize-tax", h.Invoice.FinalizeTax).
			GET("/:id/deletion-check", h.Invoice.CheckDeletion)
	}
	if h.Payment != nil {
		invoices.
			POST("/:id/payments", h.Payment.Apply).
			POST("/:id/payments/:payment_id/verify", h.Payment.Verify).
			POST("/:id/payments/:payment_id/reverse", h.Payment.Reverse).
			GET("/:id/reconciliation", h.Payment.Reconciliation)
	}
	if h.Bulk != nil {
		var chain []gin.HandlerFunc
		if opts.BulkLimiter != nil {
			chain = append(chain, middleware.RateLimit(opts.BulkLimiter, opts.Logger))
		}
		chain = append(chain,
			middleware.Idempotency(middleware.IdempotencyConfig{
				Store:  opts.Idempotency,
				Header: opts.HTTP.IdempotencyHeader,
				TTL:    opts.IdempotencyTTL,
				Logger: opts.Logger,
			}),
			h.Bulk.Process,
		)
		invoices.POST("/bulk", chain...)
	}
	return invoices
}
