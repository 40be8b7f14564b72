package handler

import (
	"strings"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles payment endpoints of an invoice
type PaymentHandler struct {
	BaseHandler
	payments *appinvoicing.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *appinvoicing.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Apply godoc
// @ID           applyPayment
// @Summary      Apply a payment to an invoice
// @Description  Records a payment. Overpayment is rejected. Reaching the paid threshold moves the invoice to PAID.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body ApplyPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[appinvoicing.PaymentOutcomeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments [post]
func (h *PaymentHandler) Apply(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req ApplyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	var paymentDate time.Time
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}
	outcome, err := h.payments.Apply(c.Request.Context(), appinvoicing.ApplyPaymentInput{
		TenantID:            middleware.TenantID(c),
		ActorID:             middleware.ActorID(c),
		InvoiceID:           invoiceID,
		Amount:              req.Amount,
		Method:              strings.ToUpper(strings.TrimSpace(req.Method)),
		Reference:           req.Reference,
		PaymentDate:         paymentDate,
		PendingVerification: req.PendingVerification,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, outcome)
}

// Verify godoc
// @ID           verifyPayment
// @Summary      Verify a pending payment
// @Tags         payments
// @Produce      json
// @Param        id         path string true "Invoice ID" format(uuid)
// @Param        payment_id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.PaymentOutcomeResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments/{payment_id}/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	ref, ok := h.paymentRef(c)
	if !ok {
		return
	}
	outcome, err := h.payments.Verify(c.Request.Context(), ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, outcome)
}

// Reverse godoc
// @ID           reversePayment
// @Summary      Reverse a payment
// @Description  Stamps the payment as reversed. A PAID invoice that is no longer fully paid returns to SENT or OVERDUE.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id         path string true "Invoice ID" format(uuid)
// @Param        payment_id path string true "Payment ID" format(uuid)
// @Param        request body ReversePaymentRequest true "Reason"
// @Success      200 {object} APIResponse[appinvoicing.PaymentOutcomeResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/payments/{payment_id}/reverse [post]
func (h *PaymentHandler) Reverse(c *gin.Context) {
	ref, ok := h.paymentRef(c)
	if !ok {
		return
	}
	var req ReversePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	outcome, err := h.payments.Reverse(c.Request.Context(), ref, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, outcome)
}

// Reconciliation godoc
// @ID           getInvoiceReconciliation
// @Summary      Get the payment position of an invoice
// @Tags         payments
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.ReconciliationResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/{id}/reconciliation [get]
func (h *PaymentHandler) Reconciliation(c *gin.Context) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.payments.Reconciliation(c.Request.Context(), middleware.TenantID(c), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

func (h *PaymentHandler) paymentRef(c *gin.Context) (appinvoicing.PaymentRef, bool) {
	invoiceID, ok := h.pathUUID(c, "id")
	if !ok {
		return appinvoicing.PaymentRef{}, false
	}
	paymentID, ok := h.pathUUID(c, "payment_id")
	if !ok {
		return appinvoicing.PaymentRef{}, false
	}
	return appinvoicing.PaymentRef{
		TenantID:  middleware.TenantID(c),
		ActorID:   middleware.ActorID(c),
		InvoiceID: invoiceID,
		PaymentID: paymentID,
	}, true
}
