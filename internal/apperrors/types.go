package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	ErrCodeInternalServer    ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidFileFormat ErrorCode = "INVALID_FILE_FORMAT"
	ErrCodeEmptyDocument     ErrorCode = "EMPTY_DOCUMENT"
	ErrCodeResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAccessDenied      ErrorCode = "ACCESS_DENIED"
	ErrCodeExternalService   ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// NewValidationError 创建验证错误（空问题、未知模型等）
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewInvalidFormatError 创建不支持文件格式的错误
func NewInvalidFormatError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidFileFormat,
		Message:  message,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewEmptyDocumentError 文档解析后无有效文本
func NewEmptyDocumentError() *AppError {
	return &AppError{
		Code:     ErrCodeEmptyDocument,
		Message:  "文档内容为空或读取失败",
		HTTPCode: http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeResourceNotFound,
		Message:  message,
		HTTPCode: http.StatusNotFound,
	}
}

// NewAccessDeniedError 创建权限错误（区别于404）
func NewAccessDeniedError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeAccessDenied,
		Message:  message,
		HTTPCode: http.StatusForbidden,
	}
}

// NewExternalServiceError 外部服务（嵌入、补全）调用失败
func NewExternalServiceError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeExternalService,
		Message:  message,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// NewInternalError 创建系统内部错误
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeInternalServer,
		Message:  message,
		HTTPCode: http.StatusInternalServerError,
		Cause:    cause,
	}
}

// AsAppError 将任意error转换为AppError，未知错误归为500
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err.Error(), err)
}
