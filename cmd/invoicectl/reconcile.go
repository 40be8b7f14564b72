package main

import (
	"context"
	"fmt"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func reconciliationService(e *env) (*appinvoicing.ReconciliationService, error) {
	validator, err := invoicing.NewStatusValidator(e.cfg.Invoicing.PaidThreshold)
	if err != nil {
		return nil, err
	}
	return appinvoicing.NewReconciliationService(
		persistence.NewGormTransactionScope(e.db.DB),
		persistence.NewGormInvoiceRepository(e.db.DB),
		validator,
	), nil
}

func parseTenant(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid tenant %q: %w", raw, err)
	}
	return id, nil
}

func reconcileCmd() *cobra.Command {
	var (
		tenant      string
		markOverdue bool
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a reconciliation sweep for one tenant or every tenant",
		Long: `Run a reconciliation sweep.

With --tenant the sweep report of that tenant is printed. Without it every
tenant with invoices is processed the way the scheduler does it and a run
summary is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			svc, err := reconciliationService(e)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if tenant != "" {
				tenantID, err := parseTenant(tenant)
				if err != nil {
					return err
				}
				report, err := svc.Sweep(ctx, tenantID, uuid.Nil)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			}

			cfg := scheduler.ConfigFrom(e.cfg.Scheduler)
			cfg.Enabled = false
			cfg.MarkOverdue = markOverdue
			sched, err := scheduler.NewReconciliationScheduler(persistence.NewGormTenantLister(e.db.DB), svc, cfg, e.log)
			if err != nil {
				return err
			}
			summary, err := sched.RunOnce(ctx)
			if summary != nil {
				if perr := printJSON(cmd.OutOrStdout(), summaryView(summary)); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d tenants failed", summary.Failed, summary.Tenants)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (default: every tenant)")
	cmd.Flags().BoolVar(&markOverdue, "mark-overdue", false, "mark overdue invoices before sweeping (all-tenant runs only)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall time limit")
	return cmd
}

func markOverdueCmd() *cobra.Command {
	var (
		tenant string
		asOf   string
	)
	cmd := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Mark a tenant's SENT invoices past their due date as OVERDUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			at := time.Now()
			if asOf != "" {
				if at, err = time.Parse(time.RFC3339, asOf); err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
			}

			e, err := openEnv()
			if err != nil {
				return err
			}
			defer e.Close()

			svc, err := reconciliationService(e)
			if err != nil {
				return err
			}
			report, err := svc.MarkOverdue(cmd.Context(), tenantID, at)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID")
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference time in RFC 3339 (default: now)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

type tenantView struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	Marked        int       `json:"marked"`
	Checked       int       `json:"checked"`
	Discrepancies int       `json:"discrepancies"`
	Error         string    `json:"error,omitempty"`
}

type runView struct {
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Tenants       int          `json:"tenants"`
	Failed        int          `json:"failed"`
	Marked        int          `json:"marked"`
	Checked       int          `json:"checked"`
	Discrepancies int          `json:"discrepancies"`
	Outcomes      []tenantView `json:"outcomes"`
}

// summaryView flattens outcome errors, which do not encode as JSON
func summaryView(s *scheduler.RunSummary) runView {
	v := runView{
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
		Tenants:       s.Tenants,
		Failed:        s.Failed,
		Marked:        s.Marked,
		Checked:       s.Checked,
		Discrepancies: s.Discrepancies,
		Outcomes:      make([]tenantView, 0, len(s.Outcomes)),
	}
	for _, o := range s.Outcomes {
		tv := tenantView{TenantID: o.TenantID, Marked: o.Marked, Checked: o.Checked, Discrepancies: o.Discrepancies}
		if o.Err != nil {
			tv.Error = o.Err.Error()
		}
		v.Outcomes = append(v.Outcomes, tv)
	}
	return v
}
