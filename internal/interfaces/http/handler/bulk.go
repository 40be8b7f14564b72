package handler

import (
	"fmt"
	"net/http"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/export"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// BulkHandler handles bulk invoice operations
type BulkHandler struct {
	BaseHandler
	processor *appinvoicing.BulkProcessor
}

// NewBulkHandler creates a new BulkHandler
func NewBulkHandler(processor *appinvoicing.BulkProcessor) *BulkHandler {
	return &BulkHandler{processor: processor}
}

// Process godoc
// @ID           processBulkOperation
// @Summary      Run one action over many invoices
// @Description  Each invoice is handled in its own unit; the result lists one outcome per requested invoice.
// @Description  An export with format=xlsx answers with the workbook instead of JSON.
// @Tags         bulk
// @Accept       json
// @Produce      json
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        Idempotency-Key header string false "Rejects a repeated request with 409"
// @Param        format query string false "Export format" Enums(json, xlsx)
// @Param        request body BulkRequest true "Bulk operation"
// @Success      200 {object} APIResponse[appinvoicing.BulkResult]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      429 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /invoices/bulk [post]
func (h *BulkHandler) Process(c *gin.Context) {
	var req BulkRequest
	if !bindJSON(c, &req) {
		return
	}
	action, err := appinvoicing.ParseBulkAction(appinvoicing.BulkActionParams{
		Action:     req.Action,
		Status:     req.Status,
		TemplateID: req.TemplateID,
		Reason:     req.Reason,
		Archive:    req.Archive,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.processor.Process(c.Request.Context(), appinvoicing.BulkRequest{
		TenantID:   middleware.TenantID(c),
		ActorID:    middleware.ActorID(c),
		InvoiceIDs: req.InvoiceIDs,
		Action:     action,
		Workers:    req.Workers,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Export != nil && c.Query("format") == "xlsx" {
		h.writeWorkbook(c, result)
		return
	}
	h.Success(c, result)
}

func (h *BulkHandler) writeWorkbook(c *gin.Context, result *appinvoicing.BulkResult) {
	data, err := export.RenderXLSX(result.Export)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	filename := fmt.Sprintf("invoices-%s.xlsx", result.StartedAt.UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Operation-ID", result.OperationID.String())
	c.Data(http.StatusOK, export.XLSXContentType, data)
}
