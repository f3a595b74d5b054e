package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(logger.NewNop()), ErrorHandler(logger.NewNop()))
	r.GET("/trace", func(c *gin.Context) {
		c.String(http.StatusOK, logger.TraceID(c.Request.Context()))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	r.GET("/error", func(c *gin.Context) {
		_ = c.Error(errors.New("db down"))
	})
	return r
}

func serve(r http.Handler, path, requestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if requestID != "" {
		req.Header.Set(HeaderRequestID, requestID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := newEngine()

	w := serve(r, "/trace", "req-123")
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-123", w.Body.String())

	w = serve(r, "/trace", strings.Repeat("x", 65))
	id := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, id)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())
}

func TestErrorHandler(t *testing.T) {
	r := newEngine()

	w := serve(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")

	w = serve(r, "/error", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "db down")
}
