package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/ginx"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// ErrorHandler 统一错误处理中间件：捕获 panic 与未写响应的 c.Errors
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(c.Request.Context(), "[HTTP] panic: %v", r)
				c.Abort()
				ginx.InternalError(c, "internal server error")
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			log.Errorf(c.Request.Context(), "[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err.Err)
			ginx.Error(c, http.StatusInternalServerError, err.Error())
		}
	}
}
