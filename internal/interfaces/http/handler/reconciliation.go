package handler

import (
	"errors"
	"io"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ReconciliationHandler triggers tenant-wide reconciliation jobs
type ReconciliationHandler struct {
	BaseHandler
	reconciliation *appinvoicing.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciliation *appinvoicing.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliation}
}

// Sweep godoc
// @ID           runReconciliationSweep
// @Summary      Reconcile every invoice of the tenant
// @Description  Classifies each non-draft invoice and lists the discrepancies. Invoices are not modified.
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} APIResponse[appinvoicing.SweepReport]
// @Security     BearerAuth
// @Router       /reconciliation/sweep [post]
func (h *ReconciliationHandler) Sweep(c *gin.Context) {
	report, err := h.reconciliation.Sweep(c.Request.Context(), middleware.TenantID(c), middleware.ActorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// MarkOverdue godoc
// @ID           markOverdueInvoices
// @Summary      Move SENT invoices past their due date to OVERDUE
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body MarkOverdueRequest false "Reference time, default now"
// @Success      200 {object} APIResponse[appinvoicing.OverdueReport]
// @Security     BearerAuth
// @Router       /reconciliation/mark-overdue [post]
func (h *ReconciliationHandler) MarkOverdue(c *gin.Context) {
	var req MarkOverdueRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}
	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	report, err := h.reconciliation.MarkOverdue(c.Request.Context(), middleware.TenantID(c), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
