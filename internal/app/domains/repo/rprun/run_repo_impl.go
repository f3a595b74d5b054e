package rprun

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zhangzihaoDT/BI-reasoning/common/entity"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/errorx"
)

// RunRepositoryImpl 分析任务仓储实现（MySQL）
type RunRepositoryImpl struct {
	db *gorm.DB
}

// NewRunRepository 创建仓储实例
func NewRunRepository(db *gorm.DB) RunRepository {
	return &RunRepositoryImpl{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.AnalysisRun{})
}

// Create 领域对象转换为 GORM 模型后存储
func (r *RunRepositoryImpl) Create(ctx context.Context, run *etrun.Run) error {
	return r.db.WithContext(ctx).Create(toGormModel(run)).Error
}

// GetByID 查询任务
func (r *RunRepositoryImpl) GetByID(ctx context.Context, runID string) (*etrun.Run, error) {
	var po entity.AnalysisRun
	err := r.db.WithContext(ctx).Where("id = ?", runID).First(&po).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.ErrRunNotFound
		}
		return nil, err
	}
	return toDomainModel(&po), nil
}

// UpdateResult 回调可能重复投递，只更新 RUNNING 状态的记录
func (r *RunRepositoryImpl) UpdateResult(ctx context.Context, runID string, status etrun.RunStatus, result *etrun.Result) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if result != nil {
		updates["anomalous"] = result.Anomalous
		updates["source"] = result.Source
		updates["error_message"] = truncate(result.Error, 1024)
		if len(result.Report) > 0 {
			updates["report"] = datatypes.JSON(result.Report)
		}
	}

	tx := r.db.WithContext(ctx).
		Model(&entity.AnalysisRun{}).
		Where("id = ? AND status = ?", runID, entity.RunStatusRunning).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func toGormModel(run *etrun.Run) *entity.AnalysisRun {
	po := &entity.AnalysisRun{
		ID:         run.ID,
		RequestID:  run.RequestID,
		ActionType: run.ActionType,
		Request:    datatypes.JSON(run.Request),
		Status:     string(run.Status),
		CreatedAt:  run.CreatedAt,
		UpdatedAt:  run.UpdatedAt,
	}
	if run.Result != nil {
		po.Anomalous = run.Result.Anomalous
		po.Source = run.Result.Source
		po.Report = datatypes.JSON(run.Result.Report)
		po.ErrorMessage = run.Result.Error
	}
	return po
}

func toDomainModel(po *entity.AnalysisRun) *etrun.Run {
	run := &etrun.Run{
		ID:         po.ID,
		RequestID:  po.RequestID,
		ActionType: po.ActionType,
		Request:    []byte(po.Request),
		Status:     etrun.RunStatus(po.Status),
		CreatedAt:  po.CreatedAt,
		UpdatedAt:  po.UpdatedAt,
	}
	if run.Finished() {
		run.Result = &etrun.Result{
			Succeeded: run.Status == etrun.RunStatusDone,
			Anomalous: po.Anomalous,
			Source:    po.Source,
			Report:    []byte(po.Report),
			Error:     po.ErrorMessage,
		}
	}
	return run
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
