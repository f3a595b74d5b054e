package rprun

import (
	"context"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
)

// RunRepository 分析任务仓储接口
type RunRepository interface {
	// Create 创建任务（RUNNING）
	Create(ctx context.Context, run *etrun.Run) error

	// GetByID 根据 ID 查询；不存在返回 errorx.ErrRunNotFound
	GetByID(ctx context.Context, runID string) (*etrun.Run, error)

	// UpdateResult 写入运行结果，仅更新仍为 RUNNING 的记录；返回是否更新
	UpdateResult(ctx context.Context, runID string, status etrun.RunStatus, result *etrun.Result) (bool, error)
}
