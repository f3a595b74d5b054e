package errorx

import (
	"errors"
	"net/http"
)

// 业务错误
var (
	ErrRunNotFound   = errors.New("run not found")
	ErrInvalidPlan   = errors.New("invalid analysis plan")
	ErrPublishFailed = errors.New("publish analysis job failed")
	ErrWaitTimeout   = errors.New("wait for analysis result timeout")
)

// BusinessError 业务错误结构
type BusinessError struct {
	Code    int
	Message string
	Details []ErrorDetail
	cause   error
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Path string
	Info string
}

// Error 实现 error 接口
func (e *BusinessError) Error() string {
	return e.Message
}

// Unwrap 支持 errors.Is
func (e *BusinessError) Unwrap() error {
	return e.cause
}

// NewBusinessError 创建业务错误
func NewBusinessError(code int, message string) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}

// Invalid 400 业务错误，保留原因链
func Invalid(cause error, message string) *BusinessError {
	return &BusinessError{
		Code:    http.StatusBadRequest,
		Message: message,
		cause:   cause,
	}
}

// HTTPStatus 错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	var be *BusinessError
	switch {
	case errors.As(err, &be):
		return be.Code
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidPlan):
		return http.StatusBadRequest
	case errors.Is(err, ErrPublishFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
