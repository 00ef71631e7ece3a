package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/betbot/clobkit/clob/types"
	"github.com/betbot/clobkit/pkg/ratelimit"
)

// CreateAPIKey 创建新的 API 密钥（L1）
func (c *Client) CreateAPIKey(ctx context.Context, nonce uint64) (*types.ApiKeyCreds, error) {
	var raw types.ApiKeyRaw
	err := c.dispatcher.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    EndpointCreateAPIKey,
		Auth:    types.AuthL1,
		L1Nonce: nonce,
		RateKey: ratelimit.KeyAuth,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("创建 API 密钥失败: %w", err)
	}
	return credsFromRaw(&raw)
}

// DeriveAPIKey 推导现有 API 密钥（L1）
func (c *Client) DeriveAPIKey(ctx context.Context, nonce uint64) (*types.ApiKeyCreds, error) {
	var raw types.ApiKeyRaw
	err := c.dispatcher.Do(ctx, &Request{
		Method:  http.MethodGet,
		Path:    EndpointDeriveAPIKey,
		Auth:    types.AuthL1,
		L1Nonce: nonce,
		RateKey: ratelimit.KeyAuth,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("推导 API 密钥失败: %w", err)
	}
	return credsFromRaw(&raw)
}

// CreateOrDeriveAPIKey 先推导现有 API 密钥；账户还没有密钥（400/404）时创建新的
func (c *Client) CreateOrDeriveAPIKey(ctx context.Context, nonce uint64) (*types.ApiKeyCreds, error) {
	creds, err := c.DeriveAPIKey(ctx, nonce)
	if err == nil {
		return creds, nil
	}

	var apiErr *types.APIError
	if !errors.As(err, &apiErr) || (apiErr.Status != http.StatusBadRequest && apiErr.Status != http.StatusNotFound) {
		return nil, err
	}
	c.log.WithField("status", apiErr.Status).Info("没有现有 API 密钥，创建新的")
	return c.CreateAPIKey(ctx, nonce)
}

func credsFromRaw(raw *types.ApiKeyRaw) (*types.ApiKeyCreds, error) {
	creds := raw.Creds()
	if !creds.Valid() {
		return nil, fmt.Errorf("API 密钥响应不完整")
	}
	return creds, nil
}

// CredentialStore 持久化 API 凭证的 KV 存储（pkg/secretstore.Store 满足该接口）
type CredentialStore interface {
	GetString(key string) (string, bool, error)
	SetString(key string, val string) error
}

// CredentialKey 凭证在存储中的键，按链和地址区分
func CredentialKey(chainID types.Chain, address string) string {
	return fmt.Sprintf("clob/api-creds/%d/%s", int(chainID), strings.ToLower(address))
}

// EnsureAPICreds 从存储加载 API 凭证；没有时通过 L1 推导或创建并写回存储
//
// 成功后凭证已设置到客户端。
func (c *Client) EnsureAPICreds(ctx context.Context, store CredentialStore, nonce uint64) (*types.ApiKeyCreds, error) {
	addr, err := c.GetAddress()
	if err != nil {
		return nil, err
	}
	key := CredentialKey(c.chainID, addr.Hex())
	log := c.log.WithField("address", addr.Hex())

	if store != nil {
		raw, found, err := store.GetString(key)
		if err != nil {
			return nil, fmt.Errorf("读取 API 凭证失败: %w", err)
		}
		if found {
			var creds types.ApiKeyCreds
			if err := json.Unmarshal([]byte(raw), &creds); err == nil && creds.Valid() {
				c.SetAPICreds(&creds)
				log.Debug("使用已保存的 API 凭证")
				return &creds, nil
			}
			log.Warn("已保存的 API 凭证无效，重新获取")
		}
	}

	creds, err := c.CreateOrDeriveAPIKey(ctx, nonce)
	if err != nil {
		return nil, err
	}
	c.SetAPICreds(creds)

	if store != nil {
		data, err := json.Marshal(creds)
		if err != nil {
			return nil, fmt.Errorf("序列化 API 凭证失败: %w", err)
		}
		if err := store.SetString(key, string(data)); err != nil {
			return nil, fmt.Errorf("保存 API 凭证失败: %w", err)
		}
		log.Info("API 凭证已保存")
	}
	return creds, nil
}
