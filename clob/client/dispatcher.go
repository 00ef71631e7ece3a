package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/betbot/clobkit/clob/signing"
	"github.com/betbot/clobkit/clob/types"
	"github.com/betbot/clobkit/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Request 一次 API 调用
type Request struct {
	Method string
	// Path 请求路径，也是 L2 签名使用的 requestPath（不含查询串）
	Path  string
	Query url.Values
	// Body 请求体；string/[]byte 原样发送，其他值序列化为 JSON
	Body any
	Auth types.AuthKind
	// RateKey 限流键，为空时使用 clob:general
	RateKey string
	// L1Nonce 仅 L1 使用
	L1Nonce uint64
}

// DispatcherConfig 分发器配置
type DispatcherConfig struct {
	ChainID       types.Chain
	Signer        signing.Signer
	Creds         *types.ApiKeyCreds
	UseServerTime bool
	RateLimiter   *ratelimit.RateLimitManager
	Logger        *logrus.Entry
}

// Dispatcher 按认证等级附加认证头并发送请求
type Dispatcher struct {
	transport     Transport
	chainID       types.Chain
	signer        signing.Signer
	creds         atomic.Pointer[types.ApiKeyCreds]
	useServerTime bool
	limiter       *ratelimit.RateLimitManager
	log           *logrus.Entry
	now           func() time.Time
}

// NewDispatcher 创建分发器；Signer/Creds 可为空，对应等级的请求会返回 ErrAuthRequired
func NewDispatcher(transport Transport, cfg DispatcherConfig) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Dispatcher{
		transport:     transport,
		chainID:       cfg.ChainID,
		signer:        cfg.Signer,
		useServerTime: cfg.UseServerTime,
		limiter:       cfg.RateLimiter,
		log:           log.WithField("component", "dispatcher"),
		now:           time.Now,
	}
	if cfg.Creds != nil {
		c := *cfg.Creds
		d.creds.Store(&c)
	}
	return d
}

// SetCreds 替换 L2 凭证
func (d *Dispatcher) SetCreds(creds *types.ApiKeyCreds) {
	if creds == nil {
		d.creds.Store(nil)
		return
	}
	c := *creds
	d.creds.Store(&c)
}

// Creds 当前 L2 凭证的副本，未配置时为 nil
func (d *Dispatcher) Creds() *types.ApiKeyCreds {
	c := d.creds.Load()
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// CanAuth 检查某个认证等级是否可用
func (d *Dispatcher) CanAuth(kind types.AuthKind) error {
	switch kind {
	case types.AuthNone:
		return nil
	case types.AuthL1:
		if d.signer == nil {
			return types.NewError(types.ErrAuthRequired, "L1", fmt.Errorf("签名器未配置"))
		}
		return nil
	case types.AuthL2:
		if d.signer == nil {
			return types.NewError(types.ErrAuthRequired, "L2", fmt.Errorf("签名器未配置"))
		}
		if !d.creds.Load().Valid() {
			return types.NewError(types.ErrAuthRequired, "L2", fmt.Errorf("API 凭证未配置"))
		}
		return nil
	default:
		return fmt.Errorf("未知的认证等级: %v", kind)
	}
}

// Do 发送请求并把 2xx 响应解析到 out（out 为 nil 时忽略响应体）
//
// 请求体只序列化一次，签名的字节就是发送的字节。
func (d *Dispatcher) Do(ctx context.Context, req *Request, out any) error {
	if err := d.CanAuth(req.Auth); err != nil {
		return err
	}

	body, err := signing.CanonicalBody(req.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidOrder, err)
	}

	rateKey := req.RateKey
	if rateKey == "" {
		rateKey = ratelimit.KeyGeneral
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, rateKey); err != nil {
			return fmt.Errorf("速率限制等待失败: %w", err)
		}
	}

	headers, err := d.authHeaders(ctx, req, body)
	if err != nil {
		return err
	}

	requestID := uuid.NewString()
	log := d.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"path":       req.Path,
		"auth":       req.Auth.String(),
	})
	if body != nil {
		log.Debugf("请求体: %s", *body)
	}

	start := d.now()
	resp, err := d.transport.Do(ctx, &HTTPRequest{
		Method:  req.Method,
		Path:    req.Path,
		Query:   req.Query,
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		log.WithError(err).Warn("请求失败")
		return err
	}
	log = log.WithFields(logrus.Fields{"status": resp.Status, "elapsed": time.Since(start)})

	if resp.Status < 200 || resp.Status >= 300 {
		log.Warnf("HTTP 错误: %s", string(resp.Body))
		return &types.APIError{Status: resp.Status, Body: string(resp.Body)}
	}
	log.Debug("请求完成")

	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("解析响应失败: %w, 响应体: %s", err, string(resp.Body))
	}
	return nil
}

// authHeaders 为请求生成认证头；时间戳在这里一次取定
func (d *Dispatcher) authHeaders(ctx context.Context, req *Request, body *string) (map[string]string, error) {
	if req.Auth == types.AuthNone {
		return nil, nil
	}

	ts, err := d.timestamp(ctx)
	if err != nil {
		return nil, err
	}

	switch req.Auth {
	case types.AuthL1:
		h, err := signing.CreateL1Headers(ctx, d.signer, d.chainID, req.L1Nonce, &ts)
		if err != nil {
			return nil, err
		}
		return h.Map(), nil
	default:
		h, err := signing.CreateL2Headers(d.signer.Address(), d.creds.Load(), &types.L2HeaderArgs{
			Method:      req.Method,
			RequestPath: req.Path,
			Body:        body,
		}, &ts)
		if err != nil {
			return nil, err
		}
		return h.Map(), nil
	}
}

func (d *Dispatcher) timestamp(ctx context.Context) (int64, error) {
	if !d.useServerTime {
		return d.now().Unix(), nil
	}
	return d.ServerTime(ctx)
}

// ServerTime 交易所服务器时间（秒）
func (d *Dispatcher) ServerTime(ctx context.Context) (int64, error) {
	resp, err := d.transport.Do(ctx, &HTTPRequest{Method: http.MethodGet, Path: EndpointTime})
	if err != nil {
		return 0, fmt.Errorf("获取服务器时间失败: %w", err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return 0, &types.APIError{Status: resp.Status, Body: string(resp.Body)}
	}
	raw := strings.Trim(strings.TrimSpace(string(resp.Body)), `"`)
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无效的服务器时间: %q", raw)
	}
	return ts, nil
}
