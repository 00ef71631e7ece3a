package signing

import (
	"fmt"
	"math/big"

	"github.com/betbot/clobkit/clob/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// orderTypes 字段顺序和类型必须与链上合约完全一致
var orderTypes = []apitypes.Type{
	{Name: "salt", Type: "uint256"},
	{Name: "maker", Type: "address"},
	{Name: "signer", Type: "address"},
	{Name: "taker", Type: "address"},
	{Name: "tokenId", Type: "uint256"},
	{Name: "makerAmount", Type: "uint256"},
	{Name: "takerAmount", Type: "uint256"},
	{Name: "expiration", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
	{Name: "feeRateBps", Type: "uint256"},
	{Name: "side", Type: "uint8"},
	{Name: "signatureType", Type: "uint8"},
}

// OrderData 订单数据（用于签名），金额字段均为整数
type OrderData struct {
	Salt          int64
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          types.Side
	SignatureType types.SignatureType
}

// BuildOrderTypedData 构建订单的 EIP712 结构，不做签名
//
// side 和 signatureType 以整数编码，金额和 id 以 uint256 整数编码；
// 这与提交给 REST 接口的字符串编码不同。
func BuildOrderTypedData(chainID types.Chain, exchangeAddress common.Address, o *OrderData) (apitypes.TypedData, error) {
	side, err := types.OrderSideToNumber(o.Side)
	if err != nil {
		return apitypes.TypedData{}, err
	}
	sigType, err := types.SignatureTypeToNumber(o.SignatureType)
	if err != nil {
		return apitypes.TypedData{}, err
	}
	for name, v := range map[string]*big.Int{
		"tokenId":     o.TokenID,
		"makerAmount": o.MakerAmount,
		"takerAmount": o.TakerAmount,
		"expiration":  o.Expiration,
		"nonce":       o.Nonce,
		"feeRateBps":  o.FeeRateBps,
	} {
		if v == nil || v.Sign() < 0 {
			return apitypes.TypedData{}, fmt.Errorf("%w: %s 必须是非负整数", types.ErrInvalidOrder, name)
		}
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": orderTypes,
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              ExchangeDomainName,
			Version:           ExchangeVersion,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: exchangeAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          big.NewInt(o.Salt),
			"maker":         o.Maker.Hex(),
			"signer":        o.Signer.Hex(),
			"taker":         o.Taker.Hex(),
			"tokenId":       new(big.Int).Set(o.TokenID),
			"makerAmount":   new(big.Int).Set(o.MakerAmount),
			"takerAmount":   new(big.Int).Set(o.TakerAmount),
			"expiration":    new(big.Int).Set(o.Expiration),
			"nonce":         new(big.Int).Set(o.Nonce),
			"feeRateBps":    new(big.Int).Set(o.FeeRateBps),
			"side":          big.NewInt(int64(side)),
			"signatureType": big.NewInt(int64(sigType)),
		},
	}, nil
}

// WireOrder 转换为 REST 接口使用的字符串编码
func (o *OrderData) WireOrder() types.Order {
	return types.Order{
		Salt:          o.Salt,
		Maker:         o.Maker.Hex(),
		Signer:        o.Signer.Hex(),
		Taker:         o.Taker.Hex(),
		TokenID:       o.TokenID.String(),
		MakerAmount:   o.MakerAmount.String(),
		TakerAmount:   o.TakerAmount.String(),
		Expiration:    o.Expiration.String(),
		Nonce:         o.Nonce.String(),
		FeeRateBps:    o.FeeRateBps.String(),
		Side:          o.Side,
		SignatureType: o.SignatureType,
	}
}
