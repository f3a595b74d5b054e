package analysis

import (
	"github.com/gin-gonic/gin"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/apimodel/request"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/apimodel/response"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/ginx"
)

// Create 创建分析任务
// POST /api/v1/analysis/runs?wait=5
func (h *AnalysisHandler) Create(c *gin.Context) {
	var req request.CreateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	run, err := h.runService.CreateRun(c.Request.Context(), req.ToRunData(), h.waitDuration(c))
	if err != nil {
		ginx.FromError(c, err)
		return
	}
	respondRun(c, run)
}

// Ask 提交问句
// POST /api/v1/analysis/ask?wait=5
func (h *AnalysisHandler) Ask(c *gin.Context) {
	var req request.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	run, err := h.runService.Ask(c.Request.Context(), req.Question, h.waitDuration(c))
	if err != nil {
		ginx.FromError(c, err)
		return
	}
	respondRun(c, run)
}

// respondRun 已结束返回结果，否则返回 3001 + 轮询地址
func respondRun(c *gin.Context, run *etrun.Run) {
	if run.Status == etrun.RunStatusRunning {
		ginx.Processing(c, run.ID, pollURL(run.ID))
		return
	}
	ginx.Success(c, response.FromRunEntity(run))
}
