package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/betbot/clobkit/clob/signing"
	"github.com/betbot/clobkit/clob/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// 公开的测试私钥（hardhat 账户 0）
const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testTokenID    = "71321045679252212594626385532706912750332728571942532289631379312455583992563"
	testSecret     = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
)

var testCreds = &types.ApiKeyCreds{Key: "test-key", Secret: testSecret, Passphrase: "test-pass"}

func testSigner(t *testing.T) *signing.PrivateKeySigner {
	t.Helper()
	s, err := signing.PrivateKeySignerFromHex(testPrivateKey)
	require.NoError(t, err)
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedSalt() int64 { return 123456789 }

// countingSigner 记录调用次数，可注入错误或阻塞
type countingSigner struct {
	inner signing.Signer
	calls atomic.Int32
	err   error
	block bool
}

func (s *countingSigner) Address() common.Address { return s.inner.Address() }

func (s *countingSigner) SignTypedData(ctx context.Context, td apitypes.TypedData) (string, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	return s.inner.SignTypedData(ctx, td)
}

// fakeMarket 可配置的市场数据源
type fakeMarket struct {
	tick    types.TickSize
	fee     int
	tickErr error
	feeErr  error

	mu        sync.Mutex
	tickCalls int
	feeCalls  int
}

func (m *fakeMarket) GetTickSize(ctx context.Context, tokenID string) (types.TickSize, error) {
	m.mu.Lock()
	m.tickCalls++
	m.mu.Unlock()
	if m.tickErr != nil {
		return "", m.tickErr
	}
	return m.tick, nil
}

func (m *fakeMarket) GetFeeRateBps(ctx context.Context, tokenID string) (int, error) {
	m.mu.Lock()
	m.feeCalls++
	m.mu.Unlock()
	if m.feeErr != nil {
		return 0, m.feeErr
	}
	return m.fee, nil
}

// negRiskMarket 额外实现 NegRiskSource
type negRiskMarket struct {
	fakeMarket
	negRisk bool
}

func (m *negRiskMarket) GetNegRisk(ctx context.Context, tokenID string) (bool, error) {
	return m.negRisk, nil
}

type nonceFunc func(ctx context.Context) (uint64, error)

func (f nonceFunc) GetNonce(ctx context.Context) (uint64, error) { return f(ctx) }

var errBoom = errors.New("boom")

// fakeTransport 记录请求，按路径返回预设响应
type fakeTransport struct {
	mu        sync.Mutex
	requests  []*HTTPRequest
	responses map[string]*HTTPResponse
	err       error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[string]*HTTPResponse)}
}

func (f *fakeTransport) respond(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = &HTTPResponse{Status: status, Body: []byte(body)}
}

func (f *fakeTransport) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[req.Path]; ok {
		return resp, nil
	}
	return &HTTPResponse{Status: 200, Body: []byte("{}")}, nil
}

func (f *fakeTransport) calls() []*HTTPRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*HTTPRequest(nil), f.requests...)
}

func ptr[T any](v T) *T { return &v }

// gatedTransport 在指定路径上阻塞，直到 release 关闭或 ctx 结束
type gatedTransport struct {
	inner   Transport
	path    string
	entered chan struct{}
	release chan struct{}
}

func newGatedTransport(inner Transport, path string) *gatedTransport {
	return &gatedTransport{inner: inner, path: path, entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedTransport) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	if req.Path == g.path {
		g.entered <- struct{}{}
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.inner.Do(ctx, req)
}

// newTransportClient 使用给定传输层创建客户端，不经过 HTTP
func newTransportClient(t *testing.T, tr Transport, creds *types.ApiKeyCreds) *Client {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	c, err := NewClient(Config{
		Host:          "http://clob.test",
		ChainID:       types.ChainPolygon,
		Signer:        testSigner(t),
		Creds:         creds,
		Transport:     tr,
		SaltGenerator: fixedSalt,
		Logger:        logrus.NewEntry(log),
	})
	require.NoError(t, err)
	return c
}

func countPath(reqs []*HTTPRequest, path string) int {
	n := 0
	for _, r := range reqs {
		if r.Path == path {
			n++
		}
	}
	return n
}
