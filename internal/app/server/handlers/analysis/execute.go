package analysis

import (
	"github.com/gin-gonic/gin"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/apimodel/request"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/apimodel/response"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/ginx"
)

// Execute 进程内同步执行，不落库
// POST /api/v1/analysis/execute
func (h *AnalysisHandler) Execute(c *gin.Context) {
	var req request.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	report, err := h.runService.Execute(c.Request.Context(), req.ToRunData())
	if report == nil {
		ginx.FromError(c, err)
		return
	}
	// 执行失败（工具错误、超出步数上限）仍返回已完成步骤
	ginx.Success(c, response.FromReport(report, err))
}
