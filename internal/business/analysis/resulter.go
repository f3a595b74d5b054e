package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
)

// ReportResulter 运行报告 -> 对外输出
type ReportResulter struct {
	srcData *RunResultData
	dstData *RunOutput
}

// NewReportResulter 创建结果处理器
func NewReportResulter() *ReportResulter {
	return &ReportResulter{}
}

// Set 设置业务结果数据
func (r *ReportResulter) Set(ctx context.Context, data interface{}) error {
	resultData, ok := data.(*RunResultData)
	if !ok || resultData == nil {
		return fmt.Errorf("unexpected result type %T", data)
	}
	r.srcData = resultData

	out := &RunOutput{
		RunID:  resultData.RunID,
		Status: model.CallbackStatusSuccess,
		Source: resultData.Source,
	}
	if resultData.RunErr != nil {
		out.Status = model.CallbackStatusFailed
		out.Error = resultData.RunErr.Error()
	}
	if rep := resultData.Report; rep != nil {
		raw, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("marshal report failed: %w", err)
		}
		out.Report = raw
		out.Anomalous = rep.Anomalous()
		out.StepCount = len(rep.Steps)
		out.Injected = rep.Injected
	}
	r.dstData = out
	return nil
}

// Get 获取格式化后的输出
func (r *ReportResulter) Get(ctx context.Context) interface{} {
	return r.dstData
}
