package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_SingleKind(t *testing.T) {
	cause := fmt.Errorf("%w: 无效的 tick size %q", ErrInvalidAmount, "abc")
	err := NewError(ErrMarketDataUnavailable, "GetTickSize", cause)

	assert.ErrorIs(t, err, ErrMarketDataUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidAmount)
	assert.Contains(t, err.Error(), "abc")

	// 包装后仍然只有一个类别
	wrapped := fmt.Errorf("下单失败: %w", err)
	assert.ErrorIs(t, wrapped, ErrMarketDataUnavailable)
	assert.NotErrorIs(t, wrapped, ErrInvalidAmount)
}

func TestError_UnwrapKeepsPlainCause(t *testing.T) {
	err := NewError(ErrSigningRejected, "SignTypedData", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrSigningRejected)
	assert.ErrorIs(t, err, ErrSigningFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// 同类别的原因照常展开
	same := NewError(ErrInvalidOrder, "BuildOrder", fmt.Errorf("%w: bad side", ErrInvalidOrder))
	assert.ErrorIs(t, same, ErrInvalidOrder)
	assert.NotNil(t, same.Unwrap())

	assert.Nil(t, NewError(ErrAuthRequired, "L2", nil).Unwrap())
}

func TestPostError_Kind(t *testing.T) {
	apiErr := &APIError{Status: 503, Body: "maintenance"}
	err := &PostError{Err: fmt.Errorf("提交订单失败: %w", apiErr)}
	assert.ErrorIs(t, err, ErrPostFailed)
	var target *APIError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, 503, target.Status)

	auth := &PostError{Err: NewError(ErrAuthRequired, "L2", errors.New("API 凭证未配置"))}
	assert.ErrorIs(t, auth, ErrPostFailed)
	assert.NotErrorIs(t, auth, ErrAuthRequired)
	assert.Contains(t, auth.Error(), "API 凭证未配置")
}
