package client

// API 端点常量
const (
	// Server Time
	EndpointTime = "/time"

	// API Key endpoints
	EndpointCreateAPIKey = "/auth/api-key"
	EndpointDeriveAPIKey = "/auth/derive-api-key"

	// Markets
	EndpointGetOrderBook = "/book"
	EndpointGetTickSize  = "/tick-size"
	EndpointGetFeeRate   = "/fee-rate"
	EndpointGetNegRisk   = "/neg-risk"

	// Order endpoints
	EndpointPostOrder     = "/order"
	EndpointCancelOrder   = "/order"
	EndpointGetOrder      = "/data/order/"
	EndpointGetOpenOrders = "/data/orders"
)

// 分页结束标记
const (
	InitialCursor = "MA=="
	EndCursor     = "LTE="
)
