package vo

import "strings"

// ErrorCategory 失败类别
type ErrorCategory string

const (
	ErrorCategoryNone       ErrorCategory = ""
	ErrorCategoryTimeout    ErrorCategory = "timeout"
	ErrorCategoryMemory     ErrorCategory = "memory"
	ErrorCategoryNetwork    ErrorCategory = "network"
	ErrorCategoryValidation ErrorCategory = "validation"
	ErrorCategoryUnknown    ErrorCategory = "unknown"
)

func (c ErrorCategory) String() string {
	return string(c)
}

// IsValid 是否为可记录的类别
func (c ErrorCategory) IsValid() bool {
	switch c {
	case ErrorCategoryTimeout, ErrorCategoryMemory, ErrorCategoryNetwork,
		ErrorCategoryValidation, ErrorCategoryUnknown:
		return true
	default:
		return false
	}
}

// ClassifyErrorMessage 按子串匹配错误信息得到类别。
// 这是启发式规则，不是可靠的分类器：匹配顺序和关键词保持不变，
// 调用方能提供明确类别时应优先使用明确类别。
func ClassifyErrorMessage(msg string) ErrorCategory {
	switch {
	case strings.Contains(msg, "timeout"):
		return ErrorCategoryTimeout
	case strings.Contains(msg, "memory"):
		return ErrorCategoryMemory
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"):
		return ErrorCategoryNetwork
	case strings.Contains(msg, "validation"), strings.Contains(msg, "invalid"):
		return ErrorCategoryValidation
	default:
		return ErrorCategoryUnknown
	}
}

// MessageMarksPermanent 错误信息中带 "permanent" 时视为不可重试，同样是启发式规则
func MessageMarksPermanent(msg string) bool {
	return strings.Contains(msg, "permanent")
}
