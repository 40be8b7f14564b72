package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	l, err := NewRateLimiter("10-M", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), l.Rate.Limit)

	_, err = NewRateLimiter("ten per minute", nil)
	assert.Error(t, err)
}

func TestRateLimit_PerTenant(t *testing.T) {
	l, err := NewRateLimiter("2-M", nil)
	require.NoError(t, err)

	verifier := identities{
		"tenant-a": {TenantID: uuid.New(), UserID: uuid.New()},
		"tenant-b": {TenantID: uuid.New(), UserID: uuid.New()},
	}
	engine := gin.New()
	engine.Use(Authenticate(verifier, nil), RateLimit(l, nil))
	engine.POST("/bulk", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/bulk", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		return perform(engine, req)
	}

	w := send("tenant-a")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send("tenant-a").Code)

	w = send("tenant-a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	// another tenant has its own budget
	assert.Equal(t, http.StatusOK, send("tenant-b").Code)
}

func TestRateLimit_FallsBackToClientIP(t *testing.T) {
	l, err := NewRateLimiter("1-H", nil)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(RateLimit(l, nil))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := func(ip string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ping", nil)
		r.RemoteAddr = ip + ":40000"
		return r
	}
	assert.Equal(t, http.StatusOK, perform(engine, req("10.0.0.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(engine, req("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, perform(engine, req("10.0.0.2")).Code)
}
