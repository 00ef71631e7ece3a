package types

import (
	"errors"
	"fmt"
)

// 错误类别，调用方使用 errors.Is 区分
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidOrder          = errors.New("invalid order")
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrSigningRejected       = errors.New("signing rejected")
	ErrPostFailed            = errors.New("post failed")
	ErrAuthRequired          = errors.New("auth required")
)

// ErrSigningFailed 与 ErrSigningRejected 是同一类别
var ErrSigningFailed = ErrSigningRejected

var errorKinds = []error{
	ErrInvalidAmount,
	ErrInvalidOrder,
	ErrMarketDataUnavailable,
	ErrSigningRejected,
	ErrPostFailed,
	ErrAuthRequired,
}

// causeOf 原因链中带有其他类别时不再展开，一个错误只属于一个类别
func causeOf(kind, err error) error {
	if err == nil {
		return nil
	}
	for _, k := range errorKinds {
		if k != kind && errors.Is(err, k) {
			return nil
		}
	}
	return err
}

// Error 带类别的错误：Is 匹配类别，Unwrap 返回原因（原因属于其他类别时返回 nil）
type Error struct {
	Kind error
	Op   string
	Err  error
}

// NewError 构造带类别的错误
func NewError(kind error, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return causeOf(e.Kind, e.Err) }

func (e *Error) Is(target error) bool { return e.Kind == target }

// APIError 交易所返回的非 2xx 响应
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP 错误 %d: %s", e.Status, e.Body)
}

// PostError 订单已签名但提交失败；Order 仍然有效，可以直接重新提交
type PostError struct {
	Order  *SignedOrder
	Reason string
	Err    error
}

func (e *PostError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v: %s", ErrPostFailed, e.Reason)
	}
	return fmt.Sprintf("%v: %v", ErrPostFailed, e.Err)
}

func (e *PostError) Unwrap() error { return causeOf(ErrPostFailed, e.Err) }

func (e *PostError) Is(target error) bool { return target == ErrPostFailed }
