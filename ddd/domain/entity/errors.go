package entity

import (
	"context"
	"errors"
	"fmt"

	"sermon-publisher/ddd/domain/vo"
)

// DomainError 状态迁移被拒绝，实体保持不变
type DomainError struct {
	message string
	From    vo.VideoStatus
	Trigger vo.VideoTrigger
}

func NewDomainError(message string) *DomainError {
	return &DomainError{message: message}
}

func newTransitionError(from vo.VideoStatus, trigger vo.VideoTrigger, reason string) *DomainError {
	msg := fmt.Sprintf("cannot %s video in status %s", trigger, from)
	if reason != "" {
		msg += ": " + reason
	}
	return &DomainError{message: msg, From: from, Trigger: trigger}
}

func (e *DomainError) Error() string {
	return e.message
}

// IsDomainError 判断是否为被拒绝的状态迁移
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// ErrorKind 流水线错误种类
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindTransientExternal ErrorKind = "transient_external"
	KindPermanentExternal ErrorKind = "permanent_external"
	KindAuthRequired      ErrorKind = "auth_required"
	KindFileSystem        ErrorKind = "filesystem"
	KindConcurrency       ErrorKind = "concurrency"
	KindNotFound          ErrorKind = "not_found"
)

// PipelineError 生成、发布、批次协调返回的带类型错误
type PipelineError struct {
	Kind     ErrorKind
	Category vo.ErrorCategory
	Op       string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// WithCategory 指定失败类别，覆盖按信息推断的结果
func (e *PipelineError) WithCategory(c vo.ErrorCategory) *PipelineError {
	e.Category = c
	return e
}

func NewPipelineError(kind ErrorKind, op string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

func NewValidationError(op string, err error) *PipelineError {
	return NewPipelineError(KindValidation, op, err).WithCategory(vo.ErrorCategoryValidation)
}

func NewTransientError(op string, err error) *PipelineError {
	return NewPipelineError(KindTransientExternal, op, err)
}

func NewPermanentError(op string, err error) *PipelineError {
	return NewPipelineError(KindPermanentExternal, op, err)
}

func NewAuthRequiredError(op string, err error) *PipelineError {
	return NewPipelineError(KindAuthRequired, op, err)
}

func NewFileSystemError(op string, err error) *PipelineError {
	return NewPipelineError(KindFileSystem, op, err)
}

func NewConcurrencyError(op string, err error) *PipelineError {
	return NewPipelineError(KindConcurrency, op, err)
}

func NewNotFoundError(op string, err error) *PipelineError {
	return NewPipelineError(KindNotFound, op, err)
}

// Errorf 便捷构造，Err 为格式化后的信息
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *PipelineError {
	return NewPipelineError(kind, op, fmt.Errorf(format, args...))
}

// KindOf 返回错误链上最外层 PipelineError 的种类，没有则返回空
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// CategoryOf 失败类别：显式类别 > 超时 > 信息子串推断
func CategoryOf(err error) vo.ErrorCategory {
	if err == nil {
		return vo.ErrorCategoryNone
	}
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Category.IsValid() {
		return pe.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return vo.ErrorCategoryTimeout
	}
	return vo.ClassifyErrorMessage(err.Error())
}

// IsPermanent 不可自动重试的失败
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return IsKind(err, KindPermanentExternal) || vo.MessageMarksPermanent(err.Error())
}
