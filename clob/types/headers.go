package types

// 交易所约定的认证头名称
const (
	HeaderPolyAddress    = "POLY_ADDRESS"
	HeaderPolySignature  = "POLY_SIGNATURE"
	HeaderPolyTimestamp  = "POLY_TIMESTAMP"
	HeaderPolyNonce      = "POLY_NONCE"
	HeaderPolyAPIKey     = "POLY_API_KEY"
	HeaderPolyPassphrase = "POLY_PASSPHRASE"
)

// L2HeaderArgs L2 认证头参数
type L2HeaderArgs struct {
	Method      string
	RequestPath string
	Body        *string
}

// L1PolyHeader L1 认证头（EIP712 签名验证）
type L1PolyHeader struct {
	PolyAddress   string `json:"POLY_ADDRESS"`
	PolySignature string `json:"POLY_SIGNATURE"`
	PolyTimestamp string `json:"POLY_TIMESTAMP"`
	PolyNonce     string `json:"POLY_NONCE"`
}

// Map 转换为请求头
func (h *L1PolyHeader) Map() map[string]string {
	return map[string]string{
		HeaderPolyAddress:   h.PolyAddress,
		HeaderPolySignature: h.PolySignature,
		HeaderPolyTimestamp: h.PolyTimestamp,
		HeaderPolyNonce:     h.PolyNonce,
	}
}

// L2PolyHeader L2 认证头（API 密钥验证）
type L2PolyHeader struct {
	PolyAddress    string `json:"POLY_ADDRESS"`
	PolySignature  string `json:"POLY_SIGNATURE"`
	PolyTimestamp  string `json:"POLY_TIMESTAMP"`
	PolyAPIKey     string `json:"POLY_API_KEY"`
	PolyPassphrase string `json:"POLY_PASSPHRASE"`
}

// Map 转换为请求头
func (h *L2PolyHeader) Map() map[string]string {
	return map[string]string{
		HeaderPolyAddress:    h.PolyAddress,
		HeaderPolySignature:  h.PolySignature,
		HeaderPolyTimestamp:  h.PolyTimestamp,
		HeaderPolyAPIKey:     h.PolyAPIKey,
		HeaderPolyPassphrase: h.PolyPassphrase,
	}
}
