package mdrun

import (
	"context"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/repo/rprun"
)

// RunModule 分析任务模块（数据操作）
type RunModule struct {
	runRepo rprun.RunRepository
}

// NewRunModule 创建任务模块
func NewRunModule(runRepo rprun.RunRepository) *RunModule {
	return &RunModule{runRepo: runRepo}
}

// CreateRun 创建任务
func (m *RunModule) CreateRun(ctx context.Context, run *etrun.Run) error {
	return m.runRepo.Create(ctx, run)
}

// GetRun 查询任务
func (m *RunModule) GetRun(ctx context.Context, runID string) (*etrun.Run, error) {
	return m.runRepo.GetByID(ctx, runID)
}

// CompleteRun 写入运行结果；已结束的任务不覆盖，返回 false
func (m *RunModule) CompleteRun(ctx context.Context, runID string, result *etrun.Result) (bool, error) {
	status := etrun.RunStatusDone
	if !result.Succeeded {
		status = etrun.RunStatusFailed
	}
	return m.runRepo.UpdateResult(ctx, runID, status, result)
}
