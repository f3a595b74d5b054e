package routers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/server/handlers/analysis"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/server/middlewares"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/logger"
)

// SetupRoutes 配置所有路由，使用 Route Group 分类
func SetupRoutes(analysisHandler *analysis.AnalysisHandler, log logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.RequestID())
	r.Use(middlewares.Logger(log))
	r.Use(middlewares.ErrorHandler(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "bi-reasoning",
			"message": "Service is running",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		runs := v1.Group("/analysis")
		{
			runs.POST("/runs", analysisHandler.Create)
			runs.GET("/runs/:id", analysisHandler.Get)
			runs.POST("/execute", analysisHandler.Execute)
			runs.POST("/ask", analysisHandler.Ask)
		}
	}

	return r
}
