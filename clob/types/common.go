package types

import (
	"fmt"
	"strings"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderSideToNumber 返回链上编码：BUY=0, SELL=1
func OrderSideToNumber(side Side) (uint8, error) {
	switch side {
	case SideBuy:
		return 0, nil
	case SideSell:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: 未知的订单方向 %q", ErrInvalidOrder, string(side))
	}
}

// ParseSide 解析订单方向（大小写不敏感）
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := OrderSideToNumber(side); err != nil {
		return "", err
	}
	return side, nil
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good Till Cancel - 一直有效直到取消
	OrderTypeFOK OrderType = "FOK" // Fill or Kill - 全部成交或全部取消
	OrderTypeGTD OrderType = "GTD" // Good Till Date - 指定日期前有效
	OrderTypeFAK OrderType = "FAK" // Fill and Kill - 部分成交，剩余取消
)

// Chain 区块链网络
type Chain int

const (
	ChainPolygon Chain = 137
	ChainAmoy    Chain = 80002
)

// SignatureType 签名类型
type SignatureType int

const (
	SignatureTypeEOA        SignatureType = 0 // eoa - 普通钱包直接签名
	SignatureTypePolyProxy  SignatureType = 1 // poly-proxy - Magic/邮箱登录的代理钱包
	SignatureTypeGnosisSafe SignatureType = 2 // poly-gnosis-safe - Gnosis Safe 代理钱包
)

var signatureTypeLabels = map[SignatureType]string{
	SignatureTypeEOA:        "eoa",
	SignatureTypePolyProxy:  "poly-proxy",
	SignatureTypeGnosisSafe: "poly-gnosis-safe",
}

// String 返回签名类型标签
func (s SignatureType) String() string {
	if label, ok := signatureTypeLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("SignatureType(%d)", int(s))
}

// SignatureTypeToNumber 返回链上编码：eoa=0, poly-proxy=1, poly-gnosis-safe=2
func SignatureTypeToNumber(s SignatureType) (uint8, error) {
	if _, ok := signatureTypeLabels[s]; !ok {
		return 0, fmt.Errorf("%w: 未知的签名类型 %d", ErrInvalidOrder, int(s))
	}
	return uint8(s), nil
}

// ParseSignatureType 支持标签（eoa/poly-proxy/poly-gnosis-safe）或数字
func ParseSignatureType(s string) (SignatureType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for st, label := range signatureTypeLabels {
		if s == label || s == fmt.Sprintf("%d", int(st)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: 未知的签名类型 %q", ErrInvalidOrder, s)
}

// AuthKind 请求所需的认证级别
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthL1
	AuthL2
)

func (k AuthKind) String() string {
	switch k {
	case AuthNone:
		return "none"
	case AuthL1:
		return "l1"
	case AuthL2:
		return "l2"
	default:
		return fmt.Sprintf("AuthKind(%d)", int(k))
	}
}

// AssetType 资产类型
type AssetType string

const (
	AssetTypeCollateral  AssetType = "COLLATERAL"
	AssetTypeConditional AssetType = "CONDITIONAL"
)

// TickSize 价格精度（十进制字符串）
type TickSize string

const (
	TickSize01    TickSize = "0.1"
	TickSize001   TickSize = "0.01"
	TickSize0001  TickSize = "0.001"
	TickSize00001 TickSize = "0.0001"
)

// ApiKeyCreds API 密钥凭证
type ApiKeyCreds struct {
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Valid 三项都不为空
func (c *ApiKeyCreds) Valid() bool {
	return c != nil && c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

// ApiKeyRaw 原始 API 密钥（API 返回格式）
type ApiKeyRaw struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Creds 转换为 ApiKeyCreds
func (r ApiKeyRaw) Creds() *ApiKeyCreds {
	return &ApiKeyCreds{Key: r.ApiKey, Secret: r.Secret, Passphrase: r.Passphrase}
}
