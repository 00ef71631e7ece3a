package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/betbot/clobkit/clob/signing"
	"github.com/betbot/clobkit/clob/types"
	"github.com/betbot/clobkit/pkg/cache"
	"github.com/betbot/clobkit/pkg/ratelimit"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// DefaultMarketCacheTTL tick size / 费率 / neg risk 的缓存时间
const DefaultMarketCacheTTL = 5 * time.Minute

// Config 客户端配置
type Config struct {
	Host    string
	ChainID types.Chain

	// Signer 为空时只能调用公开接口
	Signer signing.Signer
	// Creds 为空时 L2 接口返回 ErrAuthRequired，可以之后通过 SetAPICreds 设置
	Creds *types.ApiKeyCreds

	SignatureType types.SignatureType
	FunderAddress string

	UseServerTime bool
	SignTimeout   time.Duration
	NonceSource   NonceSource

	// Transport 为空时使用 resty
	Transport   Transport
	HTTPTimeout time.Duration
	RetryCount  int
	// RateLimiter 为空时使用默认限额
	RateLimiter    *ratelimit.RateLimitManager
	MarketCacheTTL time.Duration
	SaltGenerator  func() int64
	Logger         *logrus.Entry
}

// Client CLOB 客户端
type Client struct {
	host       string
	chainID    types.Chain
	signer     signing.Signer
	dispatcher *Dispatcher
	builder    *OrderBuilder

	tickSizes *cache.InMemoryCache[string, types.TickSize]
	feeRates  *cache.InMemoryCache[string, int]
	negRisk   *cache.InMemoryCache[string, bool]

	log *logrus.Entry
}

// NewClient 创建新的 CLOB 客户端
func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimSuffix(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("host 未配置")
	}
	if cfg.FunderAddress != "" && !common.IsHexAddress(cfg.FunderAddress) {
		return nil, fmt.Errorf("无效的 funder 地址: %q", cfg.FunderAddress)
	}
	if _, err := types.SignatureTypeToNumber(cfg.SignatureType); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("chain_id", int(cfg.ChainID))

	transport := cfg.Transport
	if transport == nil {
		transport = NewRestyTransport(host, RestyOptions{Timeout: cfg.HTTPTimeout, RetryCount: cfg.RetryCount})
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = ratelimit.NewRateLimitManager()
	}
	ttl := cfg.MarketCacheTTL
	if ttl == 0 {
		ttl = DefaultMarketCacheTTL
	}

	c := &Client{
		host:    host,
		chainID: cfg.ChainID,
		signer:  cfg.Signer,
		dispatcher: NewDispatcher(transport, DispatcherConfig{
			ChainID:       cfg.ChainID,
			Signer:        cfg.Signer,
			Creds:         cfg.Creds,
			UseServerTime: cfg.UseServerTime,
			RateLimiter:   limiter,
			Logger:        log,
		}),
		tickSizes: cache.NewInMemoryCache[string, types.TickSize](ttl),
		feeRates:  cache.NewInMemoryCache[string, int](ttl),
		negRisk:   cache.NewInMemoryCache[string, bool](ttl),
		log:       log.WithField("component", "clob_client"),
	}
	c.builder = NewOrderBuilder(cfg.Signer, c, cfg.NonceSource, OrderBuilderConfig{
		ChainID:       cfg.ChainID,
		SignatureType: cfg.SignatureType,
		FunderAddress: cfg.FunderAddress,
		SignTimeout:   cfg.SignTimeout,
		SaltGenerator: cfg.SaltGenerator,
		Logger:        log,
	})
	return c, nil
}

// GetHost 获取主机地址
func (c *Client) GetHost() string {
	return c.host
}

// GetChainID 获取链 ID
func (c *Client) GetChainID() types.Chain {
	return c.chainID
}

// GetContracts 当前链的合约地址
func (c *Client) GetContracts() ContractConfig {
	return GetContractConfig(c.chainID)
}

// Dispatcher 底层请求分发器
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// OrderBuilder 订单构建器
func (c *Client) OrderBuilder() *OrderBuilder {
	return c.builder
}
