// Package scheduler runs the periodic reconciliation jobs: marking overdue
// invoices and sweeping every tenant for payment discrepancies.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantLister returns the tenants to process
type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ReconciliationRunner is implemented by the application's ReconciliationService
type ReconciliationRunner interface {
	MarkOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*appinvoicing.OverdueReport, error)
	Sweep(ctx context.Context, tenantID, actorID uuid.UUID) (*appinvoicing.SweepReport, error)
}

// Config holds reconciliation scheduler settings
type Config struct {
	Enabled           bool
	Interval          time.Duration
	MarkOverdue       bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

// ConfigFrom maps the application configuration
func ConfigFrom(cfg config.SchedulerConfig) Config {
	return Config{
		Enabled:           cfg.Enabled,
		Interval:          cfg.ReconcileInterval,
		MarkOverdue:       cfg.MarkOverdue,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
	}
}

// Validate checks the configuration of an enabled scheduler
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("%w: max concurrent jobs must be positive", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// TenantOutcome is the result of one tenant's job within a run
type TenantOutcome struct {
	TenantID      uuid.UUID
	Marked        int
	Checked       int
	Discrepancies int
	Err           error
}

// RunSummary aggregates one run over all tenants
type RunSummary struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Tenants       int
	Failed        int
	Marked        int
	Checked       int
	Discrepancies int
	Outcomes      []TenantOutcome
}

// ReconciliationScheduler runs a reconciliation pass over every tenant on a
// fixed interval. Tenants are processed concurrently up to MaxConcurrentJobs.
type ReconciliationScheduler struct {
	tenants TenantLister
	runner  ReconciliationRunner
	config  Config
	logger  *zap.Logger
	now     func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	active  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewReconciliationScheduler(tenants TenantLister, runner ReconciliationRunner, cfg Config, log *zap.Logger) (*ReconciliationScheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 1
	}
	return &ReconciliationScheduler{
		tenants: tenants,
		runner:  runner,
		config:  cfg,
		logger:  log.Named("reconciliation_scheduler"),
		now:     time.Now,
	}, nil
}

// Start launches the periodic loop; it returns immediately
func (s *ReconciliationScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Reconciliation scheduler is disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return nil
	}
	s.active = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Reconciliation scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("mark_overdue", s.config.MarkOverdue),
		zap.Int("max_concurrent_jobs", s.config.MaxConcurrentJobs),
	)
	return nil
}

// Stop cancels the loop and waits for the current run or ctx
func (s *ReconciliationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Reconciliation scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reconciliation scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ReconciliationScheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Reconciliation run failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs one pass over every tenant. A failing tenant does not stop
// the others; only listing tenants can fail the run.
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) (*RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", "reconcile")
	defer span.End()

	summary := &RunSummary{StartedAt: s.now()}
	ids, err := s.tenants.ListTenantIDs(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	summary.Tenants = len(ids)
	summary.Outcomes = make([]TenantOutcome, len(ids))

	sem := make(chan struct{}, s.config.MaxConcurrentJobs)
	var wg sync.WaitGroup
	for i, id := range ids {
		if err := acquire(ctx, sem); err != nil {
			for j := i; j < len(ids); j++ {
				summary.Outcomes[j] = TenantOutcome{TenantID: ids[j], Err: err}
			}
			break
		}
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			telemetry.WithProfileLabels(ctx, func(ctx context.Context) {
				summary.Outcomes[i] = s.runTenant(ctx, id)
			}, "job", "reconcile")
		}(i, id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		s.finish(summary)
		return summary, err
	}
	s.finish(summary)
	telemetry.SetAttributes(span, "scheduler.tenants", summary.Tenants, "scheduler.failed", summary.Failed)
	s.logger.Info("Reconciliation run completed",
		zap.Int("tenants", summary.Tenants),
		zap.Int("failed", summary.Failed),
		zap.Int("marked_overdue", summary.Marked),
		zap.Int("checked", summary.Checked),
		zap.Int("discrepancies", summary.Discrepancies),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (s *ReconciliationScheduler) runTenant(ctx context.Context, tenantID uuid.UUID) TenantOutcome {
	ctx, cancel := context.WithTimeout(logger.WithTenant(ctx, tenantID), s.config.JobTimeout)
	defer cancel()

	out := TenantOutcome{TenantID: tenantID}
	log := logger.Enrich(ctx, s.logger)

	if s.config.MarkOverdue {
		report, err := s.runner.MarkOverdue(ctx, tenantID, s.now())
		if report != nil {
			out.Marked = len(report.Marked)
		}
		if err != nil {
			log.Error("Marking overdue invoices failed", zap.Error(err))
			out.Err = err
			return out
		}
	}

	report, err := s.runner.Sweep(ctx, tenantID, uuid.Nil)
	if err != nil {
		log.Error("Reconciliation sweep failed", zap.Error(err))
		out.Err = err
		return out
	}
	out.Checked = report.Checked
	out.Discrepancies = len(report.Discrepancies)
	if out.Discrepancies > 0 {
		log.Warn("Reconciliation discrepancies found",
			zap.Int("discrepancies", out.Discrepancies),
			zap.String("sweep_id", report.SweepID.String()),
		)
	}
	return out
}

func acquire(ctx context.Context, sem chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ReconciliationScheduler) finish(summary *RunSummary) {
	summary.FinishedAt = s.now()
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			summary.Failed++
		}
		summary.Marked += o.Marked
		summary.Checked += o.Checked
		summary.Discrepancies += o.Discrepancies
	}
}
