package response

import (
	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/internal/app/domains/entity/etrun"
	"github.com/zhangzihaoDT/BI-reasoning/internal/engine"
)

// FromRunEntity 领域对象 -> DTO
func FromRunEntity(run *etrun.Run) *RunResponse {
	resp := &RunResponse{
		ID:         run.ID,
		ActionType: run.ActionType,
		Status:     string(run.Status),
		CreatedAt:  run.CreatedAt,
		UpdatedAt:  run.UpdatedAt,
	}
	if r := run.Result; r != nil {
		resp.Anomalous = r.Anomalous
		resp.Source = r.Source
		resp.Report = r.Report
		resp.Error = r.Error
	}
	return resp
}

// FromReport 同步执行结果 -> DTO
func FromReport(report *engine.Report, runErr error) *ExecuteResponse {
	resp := &ExecuteResponse{
		Status:    model.CallbackStatusSuccess,
		Anomalous: report.Anomalous(),
		Report:    report,
	}
	if runErr != nil {
		resp.Status = model.CallbackStatusFailed
		resp.Error = runErr.Error()
	}
	return resp
}
