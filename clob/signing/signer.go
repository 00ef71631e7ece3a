package signing

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// DefaultDerivationPath 以太坊默认派生路径
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// Signer 外部签名能力：对 EIP712 结构签名，返回 0x 前缀的十六进制签名
type Signer interface {
	Address() common.Address
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) (string, error)
}

// PrivateKeySigner 使用本地私钥签名
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewPrivateKeySigner 创建本地私钥签名器
func NewPrivateKeySigner(key *ecdsa.PrivateKey) *PrivateKeySigner {
	return &PrivateKeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// PrivateKeySignerFromHex 从十六进制私钥创建签名器（可带 0x 前缀）
func PrivateKeySignerFromHex(hexKey string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	return NewPrivateKeySigner(key), nil
}

// PrivateKeySignerFromMnemonic 从助记词派生私钥；path 为空时使用默认路径
func PrivateKeySignerFromMnemonic(mnemonic, path string) (*PrivateKeySigner, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, fmt.Errorf("助记词为空")
	}
	if strings.TrimSpace(path) == "" {
		path = DefaultDerivationPath
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("无效的助记词: %w", err)
	}
	dp, err := hdwallet.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("无效的派生路径: %w", err)
	}
	acct, err := w.Derive(dp, false)
	if err != nil {
		return nil, fmt.Errorf("派生账户失败: %w", err)
	}
	key, err := w.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("获取私钥失败: %w", err)
	}
	return NewPrivateKeySigner(key), nil
}

// Address 签名者地址
func (s *PrivateKeySigner) Address() common.Address {
	return s.address
}

// SignTypedData 计算 EIP712 摘要并签名
func (s *PrivateKeySigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	hash, err := HashTypedData(typedData)
	if err != nil {
		return "", err
	}

	// crypto.Sign 返回 r(32) + s(32) + v(1)，v 为 0/1
	signature, err := crypto.Sign(hash, s.key)
	if err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}
	// 链上 ecrecover 要求 v 为 27/28
	signature[64] += 27

	return "0x" + common.Bytes2Hex(signature), nil
}
