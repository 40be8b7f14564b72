package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup_AppliesGroupMiddleware(t *testing.T) {
	engine := gin.New()
	tag := func(c *gin.Context) {
		c.Header("X-Group", "api")
		c.Next()
	}
	r := NewRouter(engine, WithGroupMiddleware(tag))
	r.Register(NewDomainGroup("invoices", "/invoices").GET("", func(c *gin.Context) {
		c.String(http.StatusOK, "list")
	}))
	r.Setup()

	w := serve(engine, http.MethodGet, "/api/v1/invoices")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "list", w.Body.String())
	assert.Equal(t, "api", w.Header().Get("X-Group"))
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }

	g := NewDomainGroup("invoices", "/invoices").
		GET("/:id", ok).
		POST("", ok).
		PUT("/:id", ok).
		DELETE("/:id", ok)
	assert.Equal(t, "invoices", g.Name())
	assert.Equal(t, "/invoices", g.Prefix())

	NewRouter(engine).Register(g).Setup()

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/invoices/42"},
		{http.MethodPost, "/api/v1/invoices"},
		{http.MethodPut, "/api/v1/invoices/42"},
		{http.MethodDelete, "/api/v1/invoices/42"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.method, w.Body.String())
		})
	}
}

func TestDomainGroup_SubgroupsAndMiddleware(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("invoices", "/invoices").Use(func(c *gin.Context) {
		c.Header("X-Domain", "invoices")
		c.Next()
	})
	g.Group("payments", "/:id/payments").POST("", func(c *gin.Context) {
		c.String(http.StatusCreated, c.Param("id"))
	})
	NewRouter(engine).Register(g).Setup()

	w := serve(engine, http.MethodPost, "/api/v1/invoices/7/payments")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "7", w.Body.String())
	assert.Equal(t, "invoices", w.Header().Get("X-Domain"))
}

func TestDomainGroup_StaticSegmentBesideParam(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("invoices", "/invoices").
		POST("/bulk", func(c *gin.Context) { c.String(http.StatusOK, "bulk") }).
		POST("/:id/status", func(c *gin.Context) { c.String(http.StatusOK, "status") })
	NewRouter(engine).Register(g).Setup()

	assert.Equal(t, "bulk", serve(engine, http.MethodPost, "/api/v1/invoices/bulk").Body.String())
	assert.Equal(t, "status", serve(engine, http.MethodPost, "/api/v1/invoices/1/status").Body.String())
}
