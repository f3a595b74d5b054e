package framework

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/zhangzihaoDT/BI-reasoning/common/model"
	"github.com/zhangzihaoDT/BI-reasoning/pkg/errorutil"
)

// BaseHandler 抽象基类
// 提供基础设施方法，不包含业务流程控制
type BaseHandler struct {
	meta     *JobMeta
	rawData  []byte
	bizData  json.RawMessage
	output   interface{}
	resulter Resulter
}

// JobMeta Job 元信息
type JobMeta struct {
	RequestID  string `json:"request_id"`
	ActionType string `json:"action_type"`
	OrgID      string `json:"org_id"`
	RunID      string `json:"run_id"`
}

// Response 标准响应结构
type Response struct {
	Error     *errorutil.Error `json:"error"`
	Result    interface{}      `json:"result"`
	Processed bool             `json:"processed"`
	Meta      *JobMeta         `json:"meta,omitempty"`
}

// ParseJob 解析 lmstfy Job 标准结构；request_id 为空时生成一个，run_id 为空时沿用 request_id
func (b *BaseHandler) ParseJob(ctx context.Context, rawData []byte) error {
	b.rawData = rawData

	var job model.Job
	if err := json.Unmarshal(rawData, &job); err != nil {
		return errorutil.NonRetriableWrap(err, "unmarshal job failed")
	}
	if job.Payload == nil || job.Payload.Data == nil {
		return errorutil.NonRetriable("invalid job structure: payload.data is nil")
	}

	data := job.Payload.Data
	b.meta = &JobMeta{
		RequestID:  data.RequestID,
		ActionType: data.ActionType,
		OrgID:      data.OrgID,
		RunID:      data.ID,
	}
	if b.meta.RequestID == "" {
		b.meta.RequestID = uuid.New().String()
	}
	if b.meta.RunID == "" {
		b.meta.RunID = b.meta.RequestID
	}
	b.bizData = data.Data
	return nil
}

// BindPayload 将业务数据解析到 v
func (b *BaseHandler) BindPayload(v interface{}) error {
	if len(b.bizData) == 0 {
		return errorutil.NonRetriable("job data is empty")
	}
	if err := json.Unmarshal(b.bizData, v); err != nil {
		return errorutil.NonRetriableWrap(err, "unmarshal job data failed")
	}
	return nil
}

// WrapResponse 包装标准响应
func (b *BaseHandler) WrapResponse(ctx context.Context, output interface{}) ([]byte, error) {
	data, err := json.Marshal(&Response{
		Result:    output,
		Processed: true,
		Meta:      b.meta,
	})
	if err != nil {
		return nil, b.WrapError(err, "marshal response failed")
	}
	return data, nil
}

// WrapErrorResponse 包装错误响应
func (b *BaseHandler) WrapErrorResponse(ctx context.Context, err error) ([]byte, error) {
	data, marshalErr := json.Marshal(&Response{
		Error:     errorutil.UnWrapResponse(err),
		Result:    b.output,
		Processed: false,
		Meta:      b.meta,
	})
	if marshalErr != nil {
		return nil, b.WrapError(marshalErr, "marshal error response failed")
	}
	return data, nil
}

// WrapError 统一包装错误
func (b *BaseHandler) WrapError(err error, msg string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

// GetMeta 获取 meta
func (b *BaseHandler) GetMeta() *JobMeta {
	return b.meta
}

// GetRawData 获取原始数据
func (b *BaseHandler) GetRawData() []byte {
	return b.rawData
}

// SetOutput 设置输出
func (b *BaseHandler) SetOutput(output interface{}) {
	b.output = output
}

// GetOutput 获取输出
func (b *BaseHandler) GetOutput() interface{} {
	return b.output
}

// SetResulter 设置结果处理器
func (b *BaseHandler) SetResulter(resulter Resulter) {
	b.resulter = resulter
}

// GetResulter 获取结果处理器
func (b *BaseHandler) GetResulter() Resulter {
	return b.resulter
}
