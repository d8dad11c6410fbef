package models

import (
	"errors"
	"fmt"
)

// ErrSeedUnreachable 种子URL无法抓取,会话终止
var ErrSeedUnreachable = errors.New("种子URL抓取失败")

// FetchError 抓取失败(网络错误、超时、非2xx)
type FetchError struct {
	URL        string
	StatusCode int   // 非2xx时的状态码, 网络错误为0
	Timeout    bool  // 是否超时
	Cause      error // 底层错误
}

// Error 实现error接口
func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("抓取超时 [%s]: %v", e.URL, e.Cause)
	case e.Cause == nil:
		return fmt.Sprintf("抓取失败 [%s]: HTTP %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("抓取失败 [%s]: %v", e.URL, e.Cause)
	}
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Type 报告中使用的错误类型
func (e *FetchError) Type() string {
	switch {
	case e.Timeout:
		return "timeout"
	case e.Cause == nil && e.StatusCode != 0:
		return "http_status"
	default:
		return "network_error"
	}
}

// WriteError 文件写入失败
type WriteError struct {
	URL   string
	Path  string
	Cause error
}

// Error 实现error接口
func (e *WriteError) Error() string {
	return fmt.Sprintf("写入失败 [%s -> %s]: %v", e.URL, e.Path, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *WriteError) Unwrap() error {
	return e.Cause
}

// ResolutionError 引用无法解析为绝对URL
type ResolutionError struct {
	Raw    string
	Reason string
}

// Error 实现error接口
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("无法解析引用 %q: %s", e.Raw, e.Reason)
}

// ValidationError 头部验证错误
type ValidationError struct {
	// Field 出错的字段 ("name" 或 "value")
	Field string

	HeaderName string
	Reason     string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误 (如viper.ConfigParseError)
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
