package types

import (
	"errors"
	"fmt"
)

// ErrDispatchTimeout 标记在截止时间前未完成的下单；它只作为数据出现在报告里。
var ErrDispatchTimeout = errors.New("dispatch did not complete before deadline")

// LookupError 表示参考数据或余额不可用，对批次是致命的。
type LookupError struct {
	Source string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s failed: %v", e.Source, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// NewLookupError 包装一次失败的查询，已是 LookupError 时原样返回。
func NewLookupError(source string, err error) error {
	if err == nil {
		return nil
	}
	var le *LookupError
	if errors.As(err, &le) {
		return err
	}
	return &LookupError{Source: source, Err: err}
}

// AuthError 表示场所会话握手被拒绝。
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("venue auth failed (%s)", e.Code)
	}
	return fmt.Sprintf("venue auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RiskEvaluationError 表示风控输入无法求值（余额为零、数量不可解析）。
type RiskEvaluationError struct {
	OrderID string
	Detail  string
}

func (e *RiskEvaluationError) Error() string {
	return fmt.Sprintf("risk evaluation failed for order %s: %s", e.OrderID, e.Detail)
}

// DispatchError 是场所明确返回的下单失败。
type DispatchError struct {
	Code   string
	Status int
	Err    error
}

func (e *DispatchError) Error() string {
	switch {
	case e.Code != "" && e.Status > 0:
		return fmt.Sprintf("venue rejected order (status=%d code=%s)", e.Status, e.Code)
	case e.Code != "":
		return fmt.Sprintf("venue rejected order (code=%s)", e.Code)
	case e.Err != nil:
		return fmt.Sprintf("venue dispatch failed: %v", e.Err)
	default:
		return "venue dispatch failed"
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

func IsLookupError(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
