package ginx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/zhangzihaoDT/BI-reasoning/internal/app/pkg/errorx"
)

// CodeProcessing Smart Wait 超时，任务仍在执行
const CodeProcessing = 3001

// Response 统一响应结构
type Response struct {
	Meta Meta        `json:"meta"`
	Data interface{} `json:"data,omitempty"`
}

// Meta 元数据；code 为 HTTP 状态码或 3001
type Meta struct {
	Code    int           `json:"code" example:"200"`
	Message string        `json:"message" example:"OK"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail 错误详情，path 为请求体中的字段路径，如 Steps[0].Tool
type ErrorDetail struct {
	Path string `json:"path" example:"Steps[0].Tool"`
	Info string `json:"info" example:"Tool is required"`
}

// ProcessingData Smart Wait 超时返回的数据
type ProcessingData struct {
	RunID   string `json:"run_id" example:"run_550e8400e29b41d4a716446655440000"`
	PollURL string `json:"poll_url" example:"/api/v1/analysis/runs/run_550e8400e29b41d4a716446655440000"`
}

func write(c *gin.Context, httpCode int, meta Meta, data interface{}) {
	c.JSON(httpCode, Response{Meta: meta, Data: data})
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, Meta{Code: http.StatusOK, Message: "OK"}, data)
}

// Processing 处理中响应（HTTP 200 + code 3001），客户端按 poll_url 轮询
func Processing(c *gin.Context, runID string, pollURL string) {
	write(c, http.StatusOK, Meta{
		Code:    CodeProcessing,
		Message: "Analysis is running, please poll for results",
	}, ProcessingData{RunID: runID, PollURL: pollURL})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, message string) {
	ErrorWithDetails(c, httpCode, message, nil)
}

// ErrorWithDetails 带详情的错误响应
func ErrorWithDetails(c *gin.Context, httpCode int, message string, details []ErrorDetail) {
	write(c, httpCode, Meta{Code: httpCode, Message: message, Details: details}, nil)
}

// FromError 按业务错误映射状态码；未归类的 5xx 不暴露内部错误信息
func FromError(c *gin.Context, err error) {
	code := errorx.HTTPStatus(err)
	switch {
	case code == http.StatusNotImplemented, code == http.StatusServiceUnavailable:
	case code >= http.StatusInternalServerError:
		InternalError(c, "internal server error")
		return
	}

	var be *errorx.BusinessError
	if errors.As(err, &be) && len(be.Details) > 0 {
		details := make([]ErrorDetail, 0, len(be.Details))
		for _, d := range be.Details {
			details = append(details, ErrorDetail{Path: d.Path, Info: d.Info})
		}
		ErrorWithDetails(c, code, be.Message, details)
		return
	}
	Error(c, code, err.Error())
}

// BadRequest 400 错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// BadRequestWithValidation 400 错误；binding 校验失败时逐字段给出原因
func BadRequestWithValidation(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		BadRequest(c, err.Error())
		return
	}

	details := make([]ErrorDetail, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details = append(details, ErrorDetail{
			Path: fieldPath(fieldErr),
			Info: validationMessage(fieldErr),
		})
	}
	ErrorWithDetails(c, http.StatusBadRequest, "Validation failed", details)
}

// NotFound 404 错误
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// fieldPath 去掉根结构体名：CreateRunRequest.Steps[0].Tool -> Steps[0].Tool
func fieldPath(fieldErr validator.FieldError) string {
	ns := fieldErr.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fieldErr validator.FieldError) string {
	field, param := fieldErr.Field(), fieldErr.Param()
	switch fieldErr.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return field + " is required when " + param + " is empty"
	case "excluded_with":
		return field + " cannot be used together with " + param
	case "oneof":
		return field + " must be one of: " + param
	case "min":
		return field + " must be at least " + param
	case "max":
		return field + " must be at most " + param
	}
	return field + " is invalid"
}
