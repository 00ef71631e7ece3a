package types

import "encoding/json"

// OrderBookSummary 订单簿摘要
type OrderBookSummary struct {
	Market       string         `json:"market"`
	AssetID      string         `json:"asset_id"`
	Timestamp    string         `json:"timestamp"`
	Bids         []OrderSummary `json:"bids"`
	Asks         []OrderSummary `json:"asks"`
	MinOrderSize string         `json:"min_order_size"`
	TickSize     string         `json:"tick_size"`
	NegRisk      bool           `json:"neg_risk"`
	Hash         string         `json:"hash"`
}

// OrderSummary 订单簿价位
type OrderSummary struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// TickSizeResponse GET /tick-size；接口可能返回数字或字符串，按字面量保留小数位
type TickSizeResponse struct {
	MinimumTickSize json.Number `json:"minimum_tick_size"`
}

// TickSize 转换为 TickSize
func (r TickSizeResponse) TickSize() TickSize {
	return TickSize(r.MinimumTickSize.String())
}

// FeeRateResponse GET /fee-rate
type FeeRateResponse struct {
	BaseFee int `json:"base_fee"`
}

// NegRiskResponse GET /neg-risk
type NegRiskResponse struct {
	NegRisk bool `json:"neg_risk"`
}
