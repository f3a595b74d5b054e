package analysis

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/services/svrun"
)

// maxWait Smart Wait 上限
const maxWait = 60 * time.Second

// AnalysisHandler 分析任务 HTTP 处理器
type AnalysisHandler struct {
	runService  *svrun.RunService
	defaultWait time.Duration
}

// NewAnalysisHandler 创建处理器实例；defaultWait 为未带 wait 参数时的等待时间
func NewAnalysisHandler(runService *svrun.RunService, defaultWait time.Duration) *AnalysisHandler {
	return &AnalysisHandler{
		runService:  runService,
		defaultWait: defaultWait,
	}
}

// waitDuration 解析 ?wait=N（秒），0 表示不等待
func (h *AnalysisHandler) waitDuration(c *gin.Context) time.Duration {
	waitStr, ok := c.GetQuery("wait")
	if !ok {
		return h.defaultWait
	}
	w, err := strconv.Atoi(waitStr)
	if err != nil || w <= 0 {
		return 0
	}
	if d := time.Duration(w) * time.Second; d < maxWait {
		return d
	}
	return maxWait
}

func pollURL(runID string) string {
	return "/api/v1/analysis/runs/" + runID
}
