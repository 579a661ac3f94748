package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），通过 errors.As 穿透 %w 包装
//
// 对外暴露的错误代码只有四种：
//   - INVALID_INPUT：候选列表为空等输入契约错误
//   - PERMISSION_DENIED：请求方不是合法的 platform
//   - NOT_FOUND：没有候选解析为有效 banner
//   - DEADLINE_EXCEEDED：超过整体时延预算
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "DEADLINE_EXCEEDED"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "recall", "recommend"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 按 Module + Code 比较，使包级错误变量可以配合 errors.Is 使用。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Module == t.Module
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeInvalidInput     = "INVALID_INPUT"     // 输入无效
	ErrorCodePermissionDenied = "PERMISSION_DENIED" // 请求方无权限
	ErrorCodeNotFound         = "NOT_FOUND"         // 资源不存在
	ErrorCodeDeadlineExceeded = "DEADLINE_EXCEEDED" // 超时
	ErrorCodeNotSupported     = "NOT_SUPPORTED"     // 操作不支持
	ErrorCodeUnavailable      = "UNAVAILABLE"       // 依赖不可用（内部使用，不对外暴露）
	ErrorCodeInternalError    = "INTERNAL_ERROR"    // 内部错误
)

// 模块名称常量
const (
	ModuleStore      = "store"      // 缓存存储
	ModuleRepository = "repository" // 关系库
	ModuleRecall     = "recall"     // 候选解析与检索
	ModuleVector     = "vector"     // 向量索引
	ModuleEmbedding  = "embedding"  // 向量化
	ModuleRank       = "rank"       // 打分
	ModuleRerank     = "rerank"     // 选择策略
	ModulePipeline   = "pipeline"   // 执行器
	ModuleRecommend  = "recommend"  // 对外服务
)

// KindOf 返回错误链中 DomainError 的 Code；非领域错误返回 INTERNAL_ERROR，nil 返回空串。
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ErrorCodeInternalError
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrorCodeInvalidInput
}

// IsPermissionDenied 检查错误是否为 PERMISSION_DENIED
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrorCodePermissionDenied
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return KindOf(err) == ErrorCodeNotFound
}

// IsDeadlineExceeded 检查错误是否为 DEADLINE_EXCEEDED
func IsDeadlineExceeded(err error) bool {
	return KindOf(err) == ErrorCodeDeadlineExceeded
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return KindOf(err) == ErrorCodeUnavailable
}
