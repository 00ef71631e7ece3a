package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// HTTPRequest 传输层请求；Body 为已经序列化好的字符串，原样发送
type HTTPRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    *string
}

// HTTPResponse 传输层响应
type HTTPResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport HTTP 传输接口
type Transport interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// RestyOptions resty 传输配置
type RestyOptions struct {
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// RestyTransport 基于 resty 的 Transport 实现
type RestyTransport struct {
	client    *resty.Client
	userAgent string
}

// NewRestyTransport 创建 resty 传输
//
// 只有 GET 在网络错误、429 和 5xx 时重试；POST/DELETE 带签名且非幂等，不重试。
// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）。
func NewRestyTransport(host string, opts RestyOptions) *RestyTransport {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "clobkit"
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(host, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		}).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 优先使用 Retry-After 头
			if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := strconv.Atoi(retryAfter); err == nil {
						return time.Duration(seconds) * time.Second, nil
					}
				}
			}
			return 0, nil
		})

	return &RestyTransport{client: client, userAgent: opts.UserAgent}
}

// Do 发送请求；非 2xx 不视为传输错误，由调用方处理状态码
func (t *RestyTransport) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	r := t.client.R().SetContext(ctx)
	r.SetHeader("Accept", "*/*")
	r.SetHeader("User-Agent", t.userAgent)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(*req.Body)
	}

	resp, err := r.Execute(strings.ToUpper(req.Method), req.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}
	return &HTTPResponse{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}
