package signing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/betbot/clobkit/clob/types"
	"github.com/ethereum/go-ethereum/common"
)

// CreateL1Headers 创建 L1 认证头（EIP712 签名验证）
func CreateL1Headers(
	ctx context.Context,
	signer Signer,
	chainID types.Chain,
	nonce uint64,
	timestamp *int64,
) (*types.L1PolyHeader, error) {
	if signer == nil {
		return nil, types.NewError(types.ErrAuthRequired, "CreateL1Headers", fmt.Errorf("签名器未配置"))
	}

	ts := time.Now().Unix()
	if timestamp != nil {
		ts = *timestamp
	}

	address := signer.Address()
	sig, err := signer.SignTypedData(ctx, BuildClobAuthTypedData(address, chainID, ts, nonce))
	if err != nil {
		return nil, types.NewError(types.ErrSigningRejected, "CreateL1Headers", err)
	}

	return &types.L1PolyHeader{
		PolyAddress:   address.Hex(),
		PolySignature: sig,
		PolyTimestamp: strconv.FormatInt(ts, 10),
		PolyNonce:     strconv.FormatUint(nonce, 10),
	}, nil
}

// CreateL2Headers 创建 L2 认证头（API 密钥验证），每个请求重新计算
func CreateL2Headers(
	address common.Address,
	creds *types.ApiKeyCreds,
	l2HeaderArgs *types.L2HeaderArgs,
	timestamp *int64,
) (*types.L2PolyHeader, error) {
	if !creds.Valid() {
		return nil, types.NewError(types.ErrAuthRequired, "CreateL2Headers", fmt.Errorf("API 凭证未配置"))
	}

	ts := time.Now().Unix()
	if timestamp != nil {
		ts = *timestamp
	}

	sig, err := BuildPolyHmacSignature(
		creds.Secret,
		ts,
		l2HeaderArgs.Method,
		l2HeaderArgs.RequestPath,
		l2HeaderArgs.Body,
	)
	if err != nil {
		return nil, fmt.Errorf("构建 HMAC 签名失败: %w", err)
	}

	return &types.L2PolyHeader{
		PolyAddress:    address.Hex(),
		PolySignature:  sig,
		PolyTimestamp:  strconv.FormatInt(ts, 10),
		PolyAPIKey:     creds.Key,
		PolyPassphrase: creds.Passphrase,
	}, nil
}
