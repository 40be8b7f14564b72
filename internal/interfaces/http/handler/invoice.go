package handler

import (
	"errors"
	"io"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices *appinvoicing.InvoiceService
	status   *appinvoicing.StatusService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *appinvoicing.InvoiceService, status *appinvoicing.StatusService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, status: status}
}

// Create godoc
// @ID           createInvoice
// @Summary      Create a draft invoice
// @Description  Creates a DRAFT invoice; totals are calculated from the line items
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body InvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := h.invoices.Create(c.Request.Context(), appinvoicing.CreateInvoiceInput{
		TenantID: middleware.TenantID(c),
		ActorID:  middleware.ActorID(c),
		Params:   req.toParams(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// Update godoc
// @ID           updateInvoice
// @Summary      Update a draft invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body InvoiceRequest true "Invoice"
// @Success      200 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	inv, err := h.invoices.UpdateDraft(c.Request.Context(), appinvoicing.UpdateInvoiceInput{
		TenantID:  middleware.TenantID(c),
		ActorID:   middleware.ActorID(c),
		InvoiceID: id,
		Params:    req.toParams(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Get godoc
// @ID           getInvoice
// @Summary      Get an invoice with its line items and payments
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.GetByID(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Param        status    query string false "Comma separated statuses"
// @Param        overdue   query bool   false "Only invoices past due"
// @Param        customer  query string false "Customer name"
// @Param        search    query string false "Invoice number or customer"
// @Param        page      query int    false "Page" default(1)
// @Param        page_size query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]appinvoicing.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var req ListInvoicesRequest
	if !bindQuery(c, &req) {
		return
	}
	req.Normalize()

	page, err := h.invoices.List(c.Request.Context(), middleware.TenantID(c), appinvoicing.ListInvoicesQuery{
		Statuses: req.statuses(),
		Overdue:  req.Overdue,
		Customer: req.Customer,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ChangeStatus godoc
// @ID           changeInvoiceStatus
// @Summary      Change an invoice's status
// @Description  Applies a validated status transition. PAID requires the verified payments to reach the paid threshold.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ChangeStatusRequest true "Target status"
// @Success      200 {object} APIResponse[invoicing.Transition]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/status [post]
func (h *InvoiceHandler) ChangeStatus(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	tr, err := h.status.ChangeStatus(c.Request.Context(), appinvoicing.ChangeStatusInput{
		TenantID:     middleware.TenantID(c),
		ActorID:      middleware.ActorID(c),
		InvoiceID:    id,
		TargetStatus: req.Status,
		Reason:       req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tr)
}

// FinalizeTax godoc
// @ID           finalizeInvoiceTax
// @Summary      Finalize the tax of an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/finalize-tax [post]
func (h *InvoiceHandler) FinalizeTax(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.FinalizeTax(c.Request.Context(), appinvoicing.InvoiceRef{
		TenantID:  middleware.TenantID(c),
		ActorID:   middleware.ActorID(c),
		InvoiceID: id,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// CheckDeletion godoc
// @ID           checkInvoiceDeletion
// @Summary      Check whether an invoice may be deleted
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[invoicing.DeletionDecision]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/deletion-check [get]
func (h *InvoiceHandler) CheckDeletion(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	decision, err := h.invoices.CheckDeletion(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, decision)
}

// Delete godoc
// @ID           deleteInvoice
// @Summary      Delete an invoice
// @Description  Only drafts without payments and without finalized tax can be deleted. Audit records are kept.
// @Tags         invoices
// @Accept       json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body DeleteInvoiceRequest false "Reason"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req DeleteInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}

	err := h.invoices.Delete(c.Request.Context(), appinvoicing.InvoiceRef{
		TenantID:  middleware.TenantID(c),
		ActorID:   middleware.ActorID(c),
		InvoiceID: id,
	}, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
