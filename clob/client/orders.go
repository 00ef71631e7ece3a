package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/betbot/clobkit/clob/types"
	"github.com/betbot/clobkit/pkg/ratelimit"
	"github.com/sirupsen/logrus"
)

// OrderResult 下单结果；提交失败时 Order 仍然有效，State 停在 Signed
type OrderResult struct {
	Order    *types.SignedOrder
	Response *types.OrderResponse
	State    types.OrderState
}

// CreateOrder 构建并签名订单（不提交）
func (c *Client) CreateOrder(ctx context.Context, userOrder *types.UserOrder, options *types.CreateOrderOptions) (*types.SignedOrder, error) {
	return c.builder.BuildOrder(ctx, userOrder, options)
}

// PostOrder 提交已签名的订单
func (c *Client) PostOrder(ctx context.Context, order *types.SignedOrder, orderType types.OrderType, deferExec bool) (*types.OrderResponse, error) {
	if order == nil {
		return nil, types.NewError(types.ErrInvalidOrder, "PostOrder", fmt.Errorf("订单为空"))
	}
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}
	// 只读取一次凭证快照，避免与 SetAPICreds 并发时读到空值
	creds := c.dispatcher.Creds()
	if !creds.Valid() {
		return nil, types.NewError(types.ErrAuthRequired, "PostOrder", fmt.Errorf("API 凭证未配置"))
	}
	if orderType == "" {
		orderType = types.OrderTypeGTC
	}

	payload := types.NewOrder{
		Order:     *order,
		Owner:     creds.Key,
		OrderType: orderType,
		DeferExec: deferExec,
	}

	var resp types.OrderResponse
	err := c.dispatcher.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    EndpointPostOrder,
		Body:    payload,
		Auth:    types.AuthL2,
		RateKey: ratelimit.KeyOrderPost,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("提交订单失败: %w", err)
	}
	return &resp, nil
}

// CreateAndPostOrder 构建、签名并提交订单
//
// 签名前的失败直接返回对应类别的错误，结果为 nil；
// 签名后的提交失败返回 *types.PostError（errors.Is(err, types.ErrPostFailed)），
// 同时返回 State 为 Signed 的结果，订单可以原样重新提交。
func (c *Client) CreateAndPostOrder(ctx context.Context, userOrder *types.UserOrder, options *types.CreateOrderOptions, orderType types.OrderType) (*OrderResult, error) {
	// 先检查 L2，避免签了名却无法提交
	if err := c.CanL2Auth(); err != nil {
		return nil, err
	}

	order, err := c.builder.BuildOrder(ctx, userOrder, options)
	if err != nil {
		return nil, err
	}
	result := &OrderResult{Order: order, State: types.OrderStateSigned}

	log := c.log.WithFields(logrus.Fields{
		"token_id":   userOrder.TokenID,
		"side":       userOrder.Side,
		"order_type": orderType,
	})

	resp, err := c.PostOrder(ctx, order, orderType, false)
	if err != nil {
		log.WithError(err).Warn("订单提交失败")
		return result, &types.PostError{Order: order, Err: err}
	}
	result.Response = resp
	if !resp.Success || resp.ErrorMsg != "" {
		log.Warnf("订单被拒绝: %s", resp.ErrorMsg)
		return result, &types.PostError{Order: order, Reason: resp.ErrorMsg}
	}

	result.State = advance(result.State, types.OrderStatePosted)
	log.WithField("order_id", resp.OrderID).Info("订单已提交")
	return result, nil
}

// Cancel 撤销结果中的订单；未提交的订单只在本地标记为已取消
func (c *Client) Cancel(ctx context.Context, result *OrderResult) (*types.CancelResponse, error) {
	if result == nil || !result.State.CanTransition(types.OrderStateCancelled) {
		return nil, types.NewError(types.ErrInvalidOrder, "Cancel", fmt.Errorf("当前状态不能取消"))
	}
	if result.State == types.OrderStateSigned {
		result.State = types.OrderStateCancelled
		return &types.CancelResponse{}, nil
	}
	if result.Response == nil || result.Response.OrderID == "" {
		return nil, types.NewError(types.ErrInvalidOrder, "Cancel", fmt.Errorf("缺少订单 ID"))
	}

	resp, err := c.CancelOrder(ctx, result.Response.OrderID)
	if err != nil {
		return nil, err
	}
	result.State = types.OrderStateCancelled
	return resp, nil
}

// CancelOrder 取消订单
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*types.CancelResponse, error) {
	if orderID == "" {
		return nil, types.NewError(types.ErrInvalidOrder, "CancelOrder", fmt.Errorf("订单 ID 为空"))
	}

	var resp types.CancelResponse
	err := c.dispatcher.Do(ctx, &Request{
		Method:  http.MethodDelete,
		Path:    EndpointCancelOrder,
		Body:    map[string]string{"orderID": orderID},
		Auth:    types.AuthL2,
		RateKey: ratelimit.KeyOrderDelete,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("取消订单失败 (orderID=%s): %w", orderID, err)
	}
	return &resp, nil
}

// orderIDPattern 交易所订单 ID 是 0x 开头的十六进制串
var orderIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)

// GetOrder 查询单个订单
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	if orderID == "" {
		return nil, types.NewError(types.ErrInvalidOrder, "GetOrder", fmt.Errorf("订单 ID 为空"))
	}
	// ID 直接拼进路径，不允许出现 / ? # 之类的字符
	if !orderIDPattern.MatchString(orderID) {
		return nil, types.NewError(types.ErrInvalidOrder, "GetOrder", fmt.Errorf("无效的订单 ID: %q", orderID))
	}

	var order types.OpenOrder
	err := c.dispatcher.Do(ctx, &Request{
		Method:  http.MethodGet,
		Path:    EndpointGetOrder + orderID,
		Auth:    types.AuthL2,
		RateKey: ratelimit.KeyOrderGet,
	}, &order)
	if err != nil {
		return nil, fmt.Errorf("查询订单失败 (orderID=%s): %w", orderID, err)
	}
	return &order, nil
}

// maxOpenOrderPages 防止服务端游标异常导致死循环
const maxOpenOrderPages = 100

// GetOpenOrders 获取开放订单（自动翻页）
func (c *Client) GetOpenOrders(ctx context.Context, params *types.OpenOrderParams) ([]types.OpenOrder, error) {
	query := url.Values{}
	if params != nil {
		if params.ID != nil {
			query.Set("id", *params.ID)
		}
		if params.Market != nil {
			query.Set("market", *params.Market)
		}
		if params.AssetID != nil {
			query.Set("asset_id", *params.AssetID)
		}
	}

	var orders []types.OpenOrder
	cursor := InitialCursor
	for page := 0; cursor != EndCursor; page++ {
		if page >= maxOpenOrderPages {
			return orders, errors.New("开放订单分页超过上限")
		}
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("next_cursor", cursor)

		var resp types.OpenOrdersAPIResponse
		err := c.dispatcher.Do(ctx, &Request{
			Method:  http.MethodGet,
			Path:    EndpointGetOpenOrders,
			Query:   q,
			Auth:    types.AuthL2,
			RateKey: ratelimit.KeyOrdersGet,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("获取开放订单失败: %w", err)
		}
		orders = append(orders, resp.Data...)

		if resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}
	return orders, nil
}
