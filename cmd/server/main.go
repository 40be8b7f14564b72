package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/auth"
	"github.com/erp/invoicing/internal/infrastructure/cache"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/event"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/notification"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/scheduler"
	"github.com/erp/invoicing/internal/infrastructure/storage"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/erp/invoicing/internal/interfaces/http/handler"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/erp/invoicing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/erp/invoicing/docs"
)

//	@title			Invoicing Engine API
//	@version		1.0
//	@description	Invoice lifecycle, payment reconciliation and bulk operations for multi-tenant billing.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// inMemoryReminderLimit caps queued reminders when Redis is disabled
const inMemoryReminderLimit = 10000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(cfg *config.Config, base *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	telCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, base)
	if err != nil {
		return err
	}
	log := logProvider.Bridge(base, zapcore.InfoLevel)

	log.Info("Starting invoicing engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, log)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telCfg, log)
	if err != nil {
		return err
	}
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.ProfileTypes,
	}, log)
	if err != nil {
		return err
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	defer func() {
		shutdownCtx := context.Background()
		if err := profiler.Stop(); err != nil {
			log.Warn("Failed to stop profiler", zap.Error(err))
		}
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
		if err := logProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to shut down log provider", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithIgnoreRecordNotFoundError(true),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:          cfg.Database.DBName,
		IncludeSQLVars:  cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		return err
	}
	log.Info("Database connected")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Warn("Error closing redis client", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Domain policies
	validator, err := invoicing.NewStatusValidator(cfg.Invoicing.PaidThreshold)
	if err != nil {
		return err
	}
	reversal, err := invoicing.ParseReversalPolicy(cfg.Invoicing.ReversalPolicy)
	if err != nil {
		return err
	}
	deletion := invoicing.NewDeletionPolicy(0)

	// Event bus and metrics
	bus := event.NewInMemoryEventBus(log)
	metrics, err := telemetry.NewInvoicingMetrics(meterProvider.Meter("invoicing"))
	if err != nil {
		return err
	}
	bus.Subscribe(metrics, metrics.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := bus.Stop(context.Background()); err != nil {
			log.Warn("Error stopping event bus", zap.Error(err))
		}
	}()

	// Application services
	invoices := persistence.NewGormInvoiceRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	invoiceSvc := appinvoicing.NewInvoiceService(scope, invoices, deletion)
	statusSvc := appinvoicing.NewStatusService(scope, validator)
	paymentSvc := appinvoicing.NewPaymentService(scope, invoices, invoicing.NewReconciler(validator, reversal))
	reconSvc := appinvoicing.NewReconciliationService(scope, invoices, validator)
	auditSvc := appinvoicing.NewAuditService(persistence.NewGormAuditRecordRepository(db.DB))
	invoiceSvc.SetEventPublisher(bus)
	statusSvc.SetEventPublisher(bus)
	paymentSvc.SetEventPublisher(bus)
	reconSvc.SetEventPublisher(bus)

	bulkOpts := []appinvoicing.BulkProcessorOption{
		appinvoicing.WithTemplateResolver(appinvoicing.NewStaticTemplateResolver(
			cfg.Invoicing.DefaultTemplate, cfg.Invoicing.ReminderTemplates...,
		)),
		appinvoicing.WithBulkEventPublisher(bus),
		appinvoicing.WithBulkObserver(metrics),
	}
	if redisClient != nil {
		bulkOpts = append(bulkOpts, appinvoicing.WithNotifier(
			notification.NewRedisReminderQueue(redisClient, cfg.Invoicing.ReminderQueueKey),
		))
	} else {
		log.Warn("Redis disabled, reminders are queued in memory")
		bulkOpts = append(bulkOpts, appinvoicing.WithNotifier(notification.NewInMemoryReminderQueue(inMemoryReminderLimit)))
	}
	if cfg.Storage.Enabled {
		archive, err := newExportArchive(ctx, cfg.Storage, log)
		if err != nil {
			return err
		}
		bulkOpts = append(bulkOpts, appinvoicing.WithExportArchive(archive))
	}
	bulk := appinvoicing.NewBulkProcessor(scope, invoices, validator, deletion, appinvoicing.BulkConfig{
		MaxItems:    cfg.Invoicing.BulkMaxItems,
		Workers:     cfg.Invoicing.BulkWorkers,
		ItemTimeout: cfg.Invoicing.BulkItemTimeout,
	}, bulkOpts...)

	// Scheduler
	sched, err := scheduler.NewReconciliationScheduler(
		persistence.NewGormTenantLister(db.DB), reconSvc, scheduler.ConfigFrom(cfg.Scheduler), log,
	)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(context.Background()); err != nil {
			log.Warn("Error stopping scheduler", zap.Error(err))
		}
	}()

	// HTTP
	if err := middleware.SetupValidator(); err != nil {
		return err
	}
	limiter, err := middleware.NewRateLimiter(cfg.HTTP.BulkRateLimit, redisClient)
	if err != nil {
		return err
	}

	checks := map[string]handler.HealthCheck{"database": db.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	engine, err := router.NewEngine(router.Options{
		HTTP:           cfg.HTTP,
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         log,
		Verifier:       auth.NewTokenService(cfg.JWT),
		BulkLimiter:    limiter,
		Idempotency:    cache.NewIdempotencyStore(redisClient, log),
		IdempotencyTTL: cfg.Invoicing.IdempotencyTTL,
		Tracing:        tracerProvider.IsEnabled(),
		Profiling:      profiler.IsEnabled(),
	}, router.Handlers{
		Health:         handler.NewHealthHandler(checks),
		Invoice:        handler.NewInvoiceHandler(invoiceSvc, statusSvc),
		Payment:        handler.NewPaymentHandler(paymentSvc),
		Bulk:           handler.NewBulkHandler(bulk),
		Reconciliation: handler.NewReconciliationHandler(reconSvc),
		Audit:          handler.NewAuditHandler(auditSvc),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited gracefully")
	return nil
}

func newExportArchive(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (*storage.S3ExportArchive, error) {
	client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	archive, err := storage.NewS3ExportArchive(client, cfg.Bucket, cfg.Prefix, log)
	if err != nil {
		return nil, err
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := archive.EnsureBucket(checkCtx); err != nil {
		return nil, err
	}
	return archive, nil
}
