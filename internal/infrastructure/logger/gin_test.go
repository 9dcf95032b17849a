package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		ctx := WithTenantID(WithRequestID(c.Request.Context(), "req-1"), "tenant-1")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/api/v1/gl/journal-entries/:id", func(c *gin.Context) {
		L(c.Request.Context()).Info("handler")
		c.Status(http.StatusOK)
	})
	router.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/gl/journal-entries/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	handler := recorded.FilterMessage("handler").All()
	require.Len(t, handler, 1)
	assert.Equal(t, "req-1", handler[0].ContextMap()["request_id"])
	assert.Equal(t, "/api/v1/gl/journal-entries/abc", handler[0].ContextMap()["path"])

	access := recorded.FilterMessage("http request").All()
	require.Len(t, access, 1)
	assert.Equal(t, zapcore.InfoLevel, access[0].Level)
	assert.Equal(t, "tenant-1", access[0].ContextMap()["tenant_id"])
	assert.Equal(t, "/api/v1/gl/journal-entries/:id", access[0].ContextMap()["route"])
	assert.Equal(t, int64(http.StatusOK), access[0].ContextMap()["status"])

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, zapcore.WarnLevel, recorded.FilterMessage("http request").All()[1].Level)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, recorded.FilterMessage("panic recovered").Len())
	assert.Equal(t, "boom", recorded.All()[0].ContextMap()["panic"])
}
