package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhangzihaoDT/BI-reasoning/internal/metrics"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// Logger 访问日志与请求计数
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		log.Infof(c.Request.Context(), "[HTTP] %s %s %d %v", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}
