package client

import (
	"github.com/betbot/clobkit/clob/types"
	"github.com/ethereum/go-ethereum/common"
)

// CanL1Auth 检查是否可以进行 L1 认证
func (c *Client) CanL1Auth() error {
	return c.dispatcher.CanAuth(types.AuthL1)
}

// CanL2Auth 检查是否可以进行 L2 认证
func (c *Client) CanL2Auth() error {
	return c.dispatcher.CanAuth(types.AuthL2)
}

// GetAddress 获取签名者地址
func (c *Client) GetAddress() (common.Address, error) {
	if err := c.CanL1Auth(); err != nil {
		return common.Address{}, err
	}
	return c.signer.Address(), nil
}

// SetAPICreds 设置 L2 API 凭证
func (c *Client) SetAPICreds(creds *types.ApiKeyCreds) {
	c.dispatcher.SetCreds(creds)
}

// APICreds 当前 L2 API 凭证，未配置时为 nil
func (c *Client) APICreds() *types.ApiKeyCreds {
	return c.dispatcher.Creds()
}
