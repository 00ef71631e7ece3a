package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// UserOrder 用户下单意图
type UserOrder struct {
	// TokenID 条件代币资产 ID（十进制字符串）
	TokenID string

	// Price 订单价格
	Price decimal.Decimal

	// Size 条件代币的数量
	Size decimal.Decimal

	// Side 订单方向
	Side Side

	// FeeRateBps 手续费率（基点），可选；为空时使用市场费率
	FeeRateBps *int

	// Nonce 链上取消订单用的 nonce，可选；为空时从 NonceSource 读取
	Nonce *uint64

	// Expiration 订单过期时间戳（秒），可选，0 表示不过期
	Expiration *int64

	// Taker 订单接受者地址，零地址表示公开订单，可选
	Taker *string
}

// CreateOrderOptions 创建订单选项
type CreateOrderOptions struct {
	// TickSize 指定价格精度；不能比市场的 tick size 更细
	TickSize *TickSize
	// NegRisk 负风险市场使用 NegRiskExchange 合约
	NegRisk *bool
}

// Order 待签名的订单，所有金额字段为十进制整数字符串
type Order struct {
	Salt          int64         `json:"salt"`
	Maker         string        `json:"maker"`
	Signer        string        `json:"signer"`
	Taker         string        `json:"taker"`
	TokenID       string        `json:"tokenId"`
	MakerAmount   string        `json:"makerAmount"`
	TakerAmount   string        `json:"takerAmount"`
	Expiration    string        `json:"expiration"`
	Nonce         string        `json:"nonce"`
	FeeRateBps    string        `json:"feeRateBps"`
	Side          Side          `json:"side"`
	SignatureType SignatureType `json:"signatureType"`
}

// SignedOrder 已签名的订单
type SignedOrder struct {
	Order
	Signature string `json:"signature"`
}

// NewOrder 提交订单的请求体
type NewOrder struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType OrderType   `json:"orderType"`
	DeferExec bool        `json:"deferExec"`
}

// OrderResponse 订单响应
type OrderResponse struct {
	Success           bool     `json:"success"`
	ErrorMsg          string   `json:"errorMsg"`
	OrderID           string   `json:"orderID"`
	TransactionHashes []string `json:"transactionsHashes"`
	Status            string   `json:"status"`
	TakingAmount      string   `json:"takingAmount"`
	MakingAmount      string   `json:"makingAmount"`
}

// CancelResponse 撤单响应
type CancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

// OpenOrder 开放订单
type OpenOrder struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	Owner           string   `json:"owner"`
	MakerAddress    string   `json:"maker_address"`
	Market          string   `json:"market"`
	AssetID         string   `json:"asset_id"`
	Side            string   `json:"side"`
	OriginalSize    string   `json:"original_size"`
	SizeMatched     string   `json:"size_matched"`
	Price           string   `json:"price"`
	AssociateTrades []string `json:"associate_trades"`
	Outcome         string   `json:"outcome"`
	CreatedAt       int64    `json:"created_at"`
	Expiration      string   `json:"expiration"`
	OrderType       string   `json:"order_type"`
}

// OpenOrdersAPIResponse API 返回的开放订单分页结构
type OpenOrdersAPIResponse struct {
	Data       []OpenOrder `json:"data"`
	NextCursor string      `json:"next_cursor"`
	Limit      int         `json:"limit"`
	Count      int         `json:"count"`
}

// OpenOrderParams 查询开放订单参数
type OpenOrderParams struct {
	ID      *string
	Market  *string
	AssetID *string
}

// OrderState 单个订单的生命周期
type OrderState int

const (
	OrderStateDrafting OrderState = iota
	OrderStateAmountsComputed
	OrderStateSigned
	OrderStatePosted
	OrderStateCancelled
)

var orderStateNames = [...]string{"drafting", "amounts_computed", "signed", "posted", "cancelled"}

func (s OrderState) String() string {
	if int(s) >= 0 && int(s) < len(orderStateNames) {
		return orderStateNames[s]
	}
	return fmt.Sprintf("OrderState(%d)", int(s))
}

// CanTransition 只允许 Drafting→AmountsComputed→Signed→(Posted|Cancelled)，以及 Posted→Cancelled
func (s OrderState) CanTransition(next OrderState) bool {
	switch s {
	case OrderStateDrafting:
		return next == OrderStateAmountsComputed
	case OrderStateAmountsComputed:
		return next == OrderStateSigned
	case OrderStateSigned:
		return next == OrderStatePosted || next == OrderStateCancelled
	case OrderStatePosted:
		return next == OrderStateCancelled
	default:
		return false
	}
}
