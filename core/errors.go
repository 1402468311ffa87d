package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 推荐链路中没有致命错误：所有 DomainError 都会被记录并降级处理，
// 最坏情况是返回非个性化的热门列表。
type DomainError struct {
	Code    string // 错误代码（如 "DATA_UNAVAILABLE", "SCORER_TIMEOUT"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "profile", "recall"）
	Err     error  // 底层错误，可为空
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 支持 errors.Is / errors.As。
func (e *DomainError) Unwrap() error {
	return e.Err
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果不存在则返回 nil
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

// WrapDomainError 创建包裹底层错误的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	// 通用错误代码
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误

	// 推荐链路错误代码
	ErrorCodeDataUnavailable    = "DATA_UNAVAILABLE"     // 数据源超时或失败
	ErrorCodeColdStart          = "COLD_START"           // 用户无任何行为（信息性，不是失败）
	ErrorCodeScorerTimeout      = "SCORER_TIMEOUT"       // 单个打分器超时
	ErrorCodeInvalidContext     = "INVALID_CONTEXT"      // 请求上下文非法（如 hour 越界）
	ErrorCodeEmptyCandidatePool = "EMPTY_CANDIDATE_POOL" // 候选池为空
)

// 模块名称常量
const (
	ModuleStore    = "store"    // 存储模块
	ModuleProfile  = "profile"  // 用户画像模块
	ModuleRecall   = "recall"   // 打分器 / 召回模块
	ModuleFeature  = "feature"  // 特征模块
	ModuleEngine   = "engine"   // 推荐入口
	ModuleProvider = "provider" // 外部数据源
)

// 常用错误
var (
	// ErrColdStart 表示用户在时间窗口内没有任何行为
	ErrColdStart = NewDomainError(ModuleProfile, ErrorCodeColdStart, "profile: no activity in window")

	// ErrEmptyCandidatePool 表示打分器没有可用候选
	ErrEmptyCandidatePool = NewDomainError(ModuleRecall, ErrorCodeEmptyCandidatePool, "recall: empty candidate pool")
)

// NewDataUnavailable 创建 DATA_UNAVAILABLE 错误
func NewDataUnavailable(module, message string, err error) *DomainError {
	return WrapDomainError(module, ErrorCodeDataUnavailable, message, err)
}

// NewScorerTimeout 创建 SCORER_TIMEOUT 错误
func NewScorerTimeout(scorer string, err error) *DomainError {
	return WrapDomainError(ModuleRecall, ErrorCodeScorerTimeout, "recall: scorer "+scorer+" timed out", err)
}

// NewInvalidContext 创建 INVALID_CONTEXT 错误
func NewInvalidContext(message string) *DomainError {
	return NewDomainError(ModuleRecall, ErrorCodeInvalidContext, message)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsDataUnavailable 检查错误是否为 DATA_UNAVAILABLE
func IsDataUnavailable(err error) bool {
	return hasCode(err, ErrorCodeDataUnavailable)
}

// IsColdStart 检查错误是否为 COLD_START
func IsColdStart(err error) bool {
	return hasCode(err, ErrorCodeColdStart)
}

// IsScorerTimeout 检查错误是否为 SCORER_TIMEOUT
func IsScorerTimeout(err error) bool {
	return hasCode(err, ErrorCodeScorerTimeout)
}

// IsInvalidContext 检查错误是否为 INVALID_CONTEXT
func IsInvalidContext(err error) bool {
	return hasCode(err, ErrorCodeInvalidContext)
}

// IsEmptyCandidatePool 检查错误是否为 EMPTY_CANDIDATE_POOL
func IsEmptyCandidatePool(err error) bool {
	return hasCode(err, ErrorCodeEmptyCandidatePool)
}
