package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/infrastructure/auth"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"github.com/erp/invoicing/internal/interfaces/http/dto"
	"github.com/erp/invoicing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

// tokenTable maps opaque test tokens to identities
type tokenTable map[string]*auth.Identity

func (t tokenTable) Verify(token string) (*auth.Identity, error) {
	if id, ok := t[token]; ok {
		return id, nil
	}
	return nil, auth.ErrInvalidToken
}

// testAPI is the invoicing API over an in-memory SQLite database
type testAPI struct {
	engine  *gin.Engine
	db      *gorm.DB
	tenantA uuid.UUID
	tenantB uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.InvoiceModel{},
		&models.InvoiceLineItemModel{},
		&models.InvoicePaymentModel{},
		&models.AuditRecordModel{},
	))

	invoices := persistence.NewGormInvoiceRepository(db)
	scope := persistence.NewGormTransactionScope(db)
	deletion := invoicing.NewDeletionPolicy(0)

	invoiceSvc := appinvoicing.NewInvoiceService(scope, invoices, deletion)
	statusSvc := appinvoicing.NewStatusService(scope, nil)
	paymentSvc := appinvoicing.NewPaymentService(scope, invoices, invoicing.NewReconciler(nil, ""))
	reconSvc := appinvoicing.NewReconciliationService(scope, invoices, nil)
	auditSvc := appinvoicing.NewAuditService(persistence.NewGormAuditRecordRepository(db))
	bulk := appinvoicing.NewBulkProcessor(scope, invoices, nil, deletion, appinvoicing.BulkConfig{})

	api := &testAPI{db: db, tenantA: uuid.New(), tenantB: uuid.New()}
	verifier := tokenTable{
		"token-a": {TenantID: api.tenantA, UserID: uuid.New(), Username: "alice"},
		"token-b": {TenantID: api.tenantB, UserID: uuid.New(), Username: "bob"},
	}

	invoiceH := NewInvoiceHandler(invoiceSvc, statusSvc)
	paymentH := NewPaymentHandler(paymentSvc)
	bulkH := NewBulkHandler(bulk)
	reconH := NewReconciliationHandler(reconSvc)
	auditH := NewAuditHandler(auditSvc)

	engine := gin.New()
	engine.Use(middleware.RequestID(""))
	v1 := engine.Group("/api/v1", middleware.Authenticate(verifier, nil))
	v1.POST("/invoices", invoiceH.Create)
	v1.GET("/invoices", invoiceH.List)
	v1.POST("/invoices/bulk", bulkH.Process)
	v1.GET("/invoices/:id", invoiceH.Get)
	v1.PUT("/invoices/:id", invoiceH.Update)
	v1.DELETE("/invoices/:id", invoiceH.Delete)
	v1.POST("/invoices/:id/status", invoiceH.ChangeStatus)
	v1.POST("/invoices/:id/finalize-tax", invoiceH.FinalizeTax)
	v1.GET("/invoices/:id/deletion-check", invoiceH.CheckDeletion)
	v1.POST("/invoices/:id/payments", paymentH.Apply)
	v1.POST("/invoices/:id/payments/:payment_id/verify", paymentH.Verify)
	v1.POST("/invoices/:id/payments/:payment_id/reverse", paymentH.Reverse)
	v1.GET("/invoices/:id/reconciliation", paymentH.Reconciliation)
	v1.POST("/reconciliation/sweep", reconH.Sweep)
	v1.POST("/reconciliation/mark-overdue", reconH.MarkOverdue)
	v1.GET("/audit", auditH.List)
	api.engine = engine
	return api
}

func (a *testAPI) do(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

// envelope mirrors dto.Response with a raw payload
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

var invoiceSeq int

func invoiceBody() map[string]any {
	invoiceSeq++
	return map[string]any{
		"invoice_number": fmt.Sprintf("INV-2025-%04d", invoiceSeq),
		"customer_name":  "Acme Trading LLC",
		"customer_email": "billing@acme.test",
		"currency":       "eur",
		"due_date":       time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339),
		"items": []map[string]any{
			{"description": "Consulting", "quantity": "2", "unit_price": "450.00", "tax_rate": "5"},
			{"description": "Travel", "quantity": "1", "unit_price": "100.00", "tax_rate": "5"},
		},
	}
}

// createInvoice creates a draft for token and returns it
func (a *testAPI) createInvoice(t *testing.T, token string) appinvoicing.InvoiceResponse {
	t.Helper()
	w := a.do(t, token, http.MethodPost, "/api/v1/invoices", invoiceBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv appinvoicing.InvoiceResponse
	decode(t, w, &inv)
	return inv
}

// sendInvoice creates an invoice and moves it to SENT
func (a *testAPI) sendInvoice(t *testing.T, token string) appinvoicing.InvoiceResponse {
	t.Helper()
	inv := a.createInvoice(t, token)
	w := a.do(t, token, http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/status", map[string]any{"status": "SENT"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return inv
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
