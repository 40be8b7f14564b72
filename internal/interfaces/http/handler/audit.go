package handler

import (
	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler exposes the audit trail
type AuditHandler struct {
	BaseHandler
	audit *appinvoicing.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audit *appinvoicing.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List godoc
// @ID           listAuditRecords
// @Summary      List audit records
// @Description  Records survive the deletion of the entity they describe. Newest first.
// @Tags         audit
// @Produce      json
// @Param        entity_type query string false "Entity type" Enums(invoice, bulk_operation, reconciliation)
// @Param        entity_id   query string false "Entity ID" format(uuid)
// @Param        action      query string false "Action"
// @Param        from        query string false "From (RFC 3339)"
// @Param        to          query string false "To (RFC 3339)"
// @Param        page        query int    false "Page" default(1)
// @Param        page_size   query int    false "Page size" default(20)
// @Success      200 {object} APIResponse[[]audit.Record]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /audit [get]
func (h *AuditHandler) List(c *gin.Context) {
	var req AuditListRequest
	if !bindQuery(c, &req) {
		return
	}
	req.Normalize()

	q := appinvoicing.AuditQuery{
		EntityType: req.EntityType,
		Action:     req.Action,
		From:       req.From,
		To:         req.To,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if req.EntityID != "" {
		id := uuid.MustParse(req.EntityID)
		q.EntityID = &id
	}

	page, err := h.audit.List(c.Request.Context(), middleware.TenantID(c), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
