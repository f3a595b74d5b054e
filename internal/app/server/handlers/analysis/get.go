package analysis

import (
	"github.com/gin-gonic/gin"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/apimodel/response"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/ginx"
)

// Get 查询任务（轮询）
// GET /api/v1/analysis/runs/:id
func (h *AnalysisHandler) Get(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		ginx.BadRequest(c, "run_id required")
		return
	}

	run, err := h.runService.GetRun(c.Request.Context(), runID)
	if err != nil {
		ginx.FromError(c, err)
		return
	}
	ginx.Success(c, response.FromRunEntity(run))
}
