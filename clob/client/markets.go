package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/betbot/clobkit/clob/types"
	"github.com/betbot/clobkit/pkg/ratelimit"
)

// GetServerTime 获取服务器时间（秒）
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	return c.dispatcher.ServerTime(ctx)
}

// GetTickSize 获取市场最小 tick size，结果会缓存
func (c *Client) GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error) {
	return c.tickSizes.GetOrLoad(ctx, tokenID, func(ctx context.Context) (types.TickSize, error) {
		var resp types.TickSizeResponse
		if err := c.getMarketParam(ctx, EndpointGetTickSize, tokenID, &resp); err != nil {
			return "", fmt.Errorf("获取 tick size 失败: %w", err)
		}
		if resp.MinimumTickSize == "" {
			return "", fmt.Errorf("tick size 响应为空 (token_id=%s)", tokenID)
		}
		return resp.TickSize(), nil
	})
}

// GetFeeRateBps 获取市场基础费率（基点），结果会缓存
func (c *Client) GetFeeRateBps(ctx context.Context, tokenID string) (int, error) {
	return c.feeRates.GetOrLoad(ctx, tokenID, func(ctx context.Context) (int, error) {
		var resp types.FeeRateResponse
		if err := c.getMarketParam(ctx, EndpointGetFeeRate, tokenID, &resp); err != nil {
			return 0, fmt.Errorf("获取费率失败: %w", err)
		}
		return resp.BaseFee, nil
	})
}

// GetNegRisk 查询是否为负风险市场，结果会缓存
func (c *Client) GetNegRisk(ctx context.Context, tokenID string) (bool, error) {
	return c.negRisk.GetOrLoad(ctx, tokenID, func(ctx context.Context) (bool, error) {
		var resp types.NegRiskResponse
		if err := c.getMarketParam(ctx, EndpointGetNegRisk, tokenID, &resp); err != nil {
			return false, fmt.Errorf("获取 neg risk 失败: %w", err)
		}
		return resp.NegRisk, nil
	})
}

// ClearMarketCache 清空 tick size / 费率 / neg risk 缓存
func (c *Client) ClearMarketCache() {
	c.tickSizes.Clear()
	c.feeRates.Clear()
	c.negRisk.Clear()
}

func (c *Client) getMarketParam(ctx context.Context, endpoint, tokenID string, out any) error {
	return c.dispatcher.Do(ctx, &Request{
		Method:  http.MethodGet,
		Path:    endpoint,
		Query:   url.Values{"token_id": {tokenID}},
		Auth:    types.AuthNone,
		RateKey: ratelimit.KeyMarketGet,
	}, out)
}

// GetOrderBook 获取订单簿
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	var book types.OrderBookSummary
	err := c.dispatcher.Do(ctx, &Request{
		Method:  http.MethodGet,
		Path:    EndpointGetOrderBook,
		Query:   url.Values{"token_id": {tokenID}},
		Auth:    types.AuthNone,
		RateKey: ratelimit.KeyBookGet,
	}, &book)
	if err != nil {
		return nil, fmt.Errorf("获取订单簿失败: %w", err)
	}
	return &book, nil
}
