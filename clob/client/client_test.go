package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/betbot/clobkit/clob/signing"
	"github.com/betbot/clobkit/clob/types"
	"github.com/betbot/clobkit/pkg/secretstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClob 模拟交易所 REST 接口，对 L2 请求按收到的字节校验 HMAC
type fakeClob struct {
	srv *httptest.Server

	mu           sync.Mutex
	hits         map[string]int
	posted       []types.NewOrder
	postStatus   int
	postResp     string
	deriveStatus int
	bookStatus   []int
	openPages    map[string]string
	lastQuery    map[string]string
}

func newFakeClob(t *testing.T) *fakeClob {
	f := &fakeClob{
		hits:       make(map[string]int),
		postStatus: http.StatusOK,
		postResp:   `{"success":true,"orderID":"0xorder1","status":"live"}`,
		openPages:  make(map[string]string),
		lastQuery:  make(map[string]string),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeClob) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method+" "+path]
}

func (f *fakeClob) postedOrders() []types.NewOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.NewOrder(nil), f.posted...)
}

func (f *fakeClob) query(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery[path]
}

func (f *fakeClob) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}

func (f *fakeClob) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[r.Method+" "+r.URL.Path]++
	f.lastQuery[r.URL.Path] = r.URL.RawQuery

	key := r.Method + " " + r.URL.Path
	switch key {
	case "GET " + EndpointTime:
		fmt.Fprint(w, time.Now().Unix())
	case "GET " + EndpointGetTickSize:
		fmt.Fprint(w, `{"minimum_tick_size":0.01}`)
	case "GET " + EndpointGetFeeRate:
		fmt.Fprint(w, `{"base_fee":0}`)
	case "GET " + EndpointGetNegRisk:
		fmt.Fprint(w, `{"neg_risk":false}`)
	case "GET " + EndpointGetOrderBook:
		if len(f.bookStatus) > 0 {
			status := f.bookStatus[0]
			f.bookStatus = f.bookStatus[1:]
			w.WriteHeader(status)
			return
		}
		fmt.Fprintf(w, `{"asset_id":%q,"bids":[{"price":"0.44","size":"10"}],"asks":[]}`, r.URL.Query().Get("token_id"))
	case "GET " + EndpointDeriveAPIKey, "POST " + EndpointCreateAPIKey:
		if !f.checkL1(w, r) {
			return
		}
		if key == "GET "+EndpointDeriveAPIKey && f.deriveStatus != 0 {
			w.WriteHeader(f.deriveStatus)
			fmt.Fprint(w, `{"error":"no api key"}`)
			return
		}
		fmt.Fprintf(w, `{"apiKey":%q,"secret":%q,"passphrase":%q}`, testCreds.Key, testCreds.Secret, testCreds.Passphrase)
	case "POST " + EndpointPostOrder:
		if !f.checkL2(w, r, body) {
			return
		}
		var order types.NewOrder
		if err := json.Unmarshal(body, &order); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.posted = append(f.posted, order)
		w.WriteHeader(f.postStatus)
		fmt.Fprint(w, f.postResp)
	case "DELETE " + EndpointCancelOrder:
		if !f.checkL2(w, r, body) {
			return
		}
		var req map[string]string
		if err := json.Unmarshal(body, &req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"canceled":[%q],"not_canceled":{}}`, req["orderID"])
	case "GET " + EndpointGetOpenOrders:
		if !f.checkL2(w, r, body) {
			return
		}
		page, ok := f.openPages[r.URL.Query().Get("next_cursor")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, page)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeClob) checkL1(w http.ResponseWriter, r *http.Request) bool {
	ts, err := strconv.ParseInt(r.Header.Get(types.HeaderPolyTimestamp), 10, 64)
	nonce, err2 := strconv.ParseUint(r.Header.Get(types.HeaderPolyNonce), 10, 64)
	if err != nil || err2 != nil || r.Header.Get(types.HeaderPolyAddress) != testAddress {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	signer, _ := signing.PrivateKeySignerFromHex(testPrivateKey)
	want, _ := signer.SignTypedData(r.Context(), signing.BuildClobAuthTypedData(signer.Address(), types.ChainPolygon, ts, nonce))
	if want != r.Header.Get(types.HeaderPolySignature) {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func (f *fakeClob) checkL2(w http.ResponseWriter, r *http.Request, body []byte) bool {
	ts, err := strconv.ParseInt(r.Header.Get(types.HeaderPolyTimestamp), 10, 64)
	if err != nil || r.Header.Get(types.HeaderPolyAPIKey) != testCreds.Key || r.Header.Get(types.HeaderPolyPassphrase) != testCreds.Passphrase {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	var bodyPtr *string
	if len(body) > 0 {
		s := string(body)
		bodyPtr = &s
	}
	want, _ := signing.BuildPolyHmacSignature(testSecret, ts, r.Method, r.URL.Path, bodyPtr)
	if want != r.Header.Get(types.HeaderPolySignature) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"Unauthorized/Invalid api key"}`)
		return false
	}
	return true
}

func newTestClient(t *testing.T, f *fakeClob, creds *types.ApiKeyCreds) *Client {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	c, err := NewClient(Config{
		Host:          f.srv.URL,
		ChainID:       types.ChainPolygon,
		Signer:        testSigner(t),
		Creds:         creds,
		SaltGenerator: fixedSalt,
		RetryCount:    2,
		Logger:        logrus.NewEntry(log),
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{Host: "http://x", FunderAddress: "bad"})
	assert.Error(t, err)

	_, err = NewClient(Config{Host: "http://x", SignatureType: types.SignatureType(9)})
	assert.Error(t, err)

	c, err := NewClient(Config{Host: "http://x/", ChainID: types.ChainAmoy})
	require.NoError(t, err)
	assert.Equal(t, "http://x", c.GetHost())
	assert.Equal(t, AmoyTestnetContracts, c.GetContracts())
	assert.ErrorIs(t, c.CanL1Auth(), types.ErrAuthRequired)
}

func TestClient_CreateAndPostOrder(t *testing.T) {
	f := newFakeClob(t)
	c := newTestClient(t, f, testCreds)

	result, err := c.CreateAndPostOrder(context.Background(), buyOrder("0.45", "100"), nil, types.OrderTypeGTC)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatePosted, result.State)
	assert.Equal(t, "0xorder1", result.Response.OrderID)

	posted := f.postedOrders()
	require.Len(t, posted, 1)
	assert.Equal(t, testCreds.Key, posted[0].Owner)
	assert.Equal(t, types.OrderTypeGTC, posted[0].OrderType)
	assert.Equal(t, *result.Order, posted[0].Order)
	assert.Equal(t, "450000", posted[0].Order.MakerAmount)
	assert.Equal(t, "10000", posted[0].Order.TakerAmount)
}

func TestClient_MarketParamsCached(t *testing.T) {
	f := newFakeClob(t)
	c := newTestClient(t, f, testCreds)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.CreateOrder(ctx, buyOrder("0.45", "100"), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.count(http.MethodGet, EndpointGetTickSize))
	assert.Equal(t, 1, f.count(http.MethodGet, EndpointGetFeeRate))
	assert.Equal(t, 1, f.count(http.MethodGet, EndpointGetNegRisk))

	c.ClearMarketCache()
	_, err := c.CreateOrder(ctx, buyOrder("0.45", "100"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count(http.MethodGet, EndpointGetTickSize))
}

func TestClient_CreateAndPostOrder_PostFailed(t *testing.T) {
	f := newFakeClob(t)
	f.postStatus = http.StatusServiceUnavailable
	f.postResp = `{"error":"maintenance"}`
	c := newTestClient(t, f, testCreds)

	result, err := c.CreateAndPostOrder(context.Background(), buyOrder("0.45", "100"), nil, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPostFailed)

	var postErr *types.PostError
	require.True(t, errors.As(err, &postErr))
	require.NotNil(t, result)
	assert.Equal(t, result.Order, postErr.Order)
	assert.Equal(t, types.OrderStateSigned, result.State)

	var apiErr *types.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	// POST 不重试
	assert.Equal(t, 1, f.count(http.MethodPost, EndpointPostOrder))

	// 已签名的订单可以原样重新提交
	f.mu.Lock()
	f.postStatus = http.StatusOK
	f.postResp = `{"success":true,"orderID":"0xorder2"}`
	f.mu.Unlock()
	resp, err := c.PostOrder(context.Background(), postErr.Order, types.OrderTypeGTC, false)
	require.NoError(t, err)
	assert.Equal(t, "0xorder2", resp.OrderID)
	assert.Equal(t, result.Order.Signature, f.postedOrders()[1].Order.Signature)
}

func TestClient_CreateAndPostOrder_Rejected(t *testing.T) {
	f := newFakeClob(t)
	f.postResp = `{"success":false,"errorMsg":"not enough balance / allowance"}`
	c := newTestClient(t, f, testCreds)

	result, err := c.CreateAndPostOrder(context.Background(), buyOrder("0.45", "100"), nil, types.OrderTypeFOK)
	assert.ErrorIs(t, err, types.ErrPostFailed)
	var postErr *types.PostError
	require.True(t, errors.As(err, &postErr))
	assert.Equal(t, "not enough balance / allowance", postErr.Reason)
	assert.Equal(t, types.OrderStateSigned, result.State)
	assert.Equal(t, types.OrderTypeFOK, f.postedOrders()[0].OrderType)
}

func TestClient_CreateAndPostOrder_NeedsCreds(t *testing.T) {
	f := newFakeClob(t)
	c := newTestClient(t, f, nil)

	result, err := c.CreateAndPostOrder(context.Background(), buyOrder("0.45", "100"), nil, types.OrderTypeGTC)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, types.ErrAuthRequired)
	assert.Zero(t, f.total())
}

func TestClient_Cancel(t *testing.T) {
	f := newFakeClob(t)
	c := newTestClient(t, f, testCreds)
	ctx := context.Background()

	result, err := c.CreateAndPostOrder(ctx, buyOrder("0.45", "100"), nil, types.OrderTypeGTC)
	require.NoError(t, err)

	resp, err := c.Cancel(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xorder1"}, resp.Canceled)
	assert.Equal(t, types.OrderStateCancelled, result.State)
	assert.Equal(t, 1, f.count(http.MethodDelete, EndpointCancelOrder))

	_, err = c.Cancel(ctx, result)
	assert.ErrorIs(t, err, types.ErrInvalidOrder)

	// 未提交的订单只在本地取消
	signedOnly := &OrderResult{Order: result.Order, State: types.OrderStateSigned}
	_, err = c.Cancel(ctx, signedOnly)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStateCancelled, signedOnly.State)
	assert.Equal(t, 1, f.count(http.MethodDelete, EndpointCancelOrder))

	_, err = c.CancelOrder(ctx, "")
	assert.ErrorIs(t, err, types.ErrInvalidOrder)
}

func TestClient_CreateOrDeriveAPIKey(t *testing.T) {
	f := newFakeClob(t)
	c := newTestClient(t, f, nil)

	creds, err := c.CreateOrDeriveAPIKey(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, testCreds, creds)
	assert.Equal(t, 0, f.count(http.MethodPost, EndpointCreateAPIKey))

	f.mu.Lock()
	f.deriveStatus = http.StatusNotFound
	f.mu.Unlock()
	creds, err = c.CreateOrDeriveAPIKey(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, testCreds, creds)
	assert.Equal(t, 1, f.count(http.MethodPost, EndpointCreateAPIKey))

	// 其他错误不回退
	f.mu.Lock()
	f.deriveStatus = http.StatusUnauthorized
	f.mu.Unlock()
	_, err = c.CreateOrDeriveAPIKey(context.Background(), 0)
	assert.Error(t, err)
	assert.Equal(t, 1, f.count(http.MethodPost, EndpointCreateAPIKey))
}

func TestClient_EnsureAPICreds(t *testing.T) {
	f := newFakeClob(t)
	store, err := secretstore.Open(secretstore.OpenOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c := newTestClient(t, f, nil)
	creds, err := c.EnsureAPICreds(context.Background(), store, 0)
	require.NoError(t, err)
	assert.Equal(t, testCreds, creds)
	assert.NoError(t, c.CanL2Auth())
	assert.Equal(t, 1, f.count(http.MethodGet, EndpointDeriveAPIKey))

	// 第二个客户端直接从存储读取
	c2 := newTestClient(t, f, nil)
	creds, err = c2.EnsureAPICreds(context.Background(), store, 0)
	require.NoError(t, err)
	assert.Equal(t, testCreds, creds)
	assert.Equal(t, 1, f.count(http.MethodGet, EndpointDeriveAPIKey))

	raw, found, err := store.GetString(CredentialKey(types.ChainPolygon, testAddress))
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, raw, testCreds.Key)

	result, err := c2.CreateAndPostOrder(context.Background(), buyOrder("0.45", "100"), nil, types.OrderTypeGTC)
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatePosted, result.State)
}

func TestClient_GetOpenOrdersPaginates(t *testing.T) {
	f := newFakeClob(t)
	f.openPages[InitialCursor] = `{"data":[{"id":"1"},{"id":"2"}],"next_cursor":"Mg=="}`
	f.openPages["Mg=="] = `{"data":[{"id":"3"}],"next_cursor":"LTE="}`
	c := newTestClient(t, f, testCreds)

	market := "0xmarket"
	orders, err := c.GetOpenOrders(context.Background(), &types.OpenOrderParams{Market: &market})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "3", orders[2].ID)
	assert.Equal(t, 2, f.count(http.MethodGet, EndpointGetOpenOrders))
	assert.Contains(t, f.query(EndpointGetOpenOrders), "market=0xmarket")
}

func TestClient_GetOrderBookRetriesGet(t *testing.T) {
	f := newFakeClob(t)
	f.bookStatus = []int{http.StatusBadGateway}
	c := newTestClient(t, f, nil)

	book, err := c.GetOrderBook(context.Background(), testTokenID)
	require.NoError(t, err)
	assert.Equal(t, testTokenID, book.AssetID)
	require.Len(t, book.Bids, 1)
	assert.Equal(t, 2, f.count(http.MethodGet, EndpointGetOrderBook))
}

func TestClient_UseServerTime(t *testing.T) {
	f := newFakeClob(t)
	c, err := NewClient(Config{
		Host:          f.srv.URL,
		ChainID:       types.ChainPolygon,
		Signer:        testSigner(t),
		Creds:         testCreds,
		UseServerTime: true,
	})
	require.NoError(t, err)

	_, err = c.CancelOrder(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(http.MethodGet, EndpointTime))

	ts, err := c.GetServerTime(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Unix(), ts, 5)
}

func TestClient_SharedTickSizeLoadSurvivesCallerCancel(t *testing.T) {
	ft := newFakeTransport()
	ft.respond(EndpointGetTickSize, http.StatusOK, `{"minimum_tick_size":"0.01"}`)
	gt := newGatedTransport(ft, EndpointGetTickSize)
	c := newTransportClient(t, gt, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.CreateOrder(ctxA, buyOrder("0.45", "100"), nil)
		errA <- err
	}()
	<-gt.entered

	type result struct {
		order *types.SignedOrder
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		order, err := c.CreateOrder(context.Background(), buyOrder("0.45", "100"), nil)
		resB <- result{order, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	err := <-errA
	assert.ErrorIs(t, err, types.ErrMarketDataUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	// 第一个调用方取消不影响正在共享同一次加载的调用方
	close(gt.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "450000", r.order.MakerAmount)
	case <-time.After(2 * time.Second):
		t.Fatal("第二个调用方未返回")
	}
	assert.Equal(t, 1, countPath(ft.calls(), EndpointGetTickSize))
	assert.Len(t, gt.entered, 0)
}

func TestClient_PostOrder_CredsSwappedConcurrently(t *testing.T) {
	ft := newFakeTransport()
	ft.respond(EndpointGetTickSize, http.StatusOK, `{"minimum_tick_size":"0.01"}`)
	ft.respond(EndpointPostOrder, http.StatusOK, `{"success":true,"orderID":"0xorder1"}`)
	c := newTransportClient(t, ft, testCreds)
	ctx := context.Background()

	order, err := c.CreateOrder(ctx, buyOrder("0.45", "100"), nil)
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			c.SetAPICreds(nil)
			c.SetAPICreds(testCreds)
		}
	}()

	for i := 0; i < 200; i++ {
		_, err := c.PostOrder(ctx, order, types.OrderTypeGTC, false)
		if err != nil {
			assert.ErrorIs(t, err, types.ErrAuthRequired)
		}
	}
	close(stop)
	wg.Wait()

	for _, req := range ft.calls() {
		if req.Method != http.MethodPost {
			continue
		}
		require.NotNil(t, req.Body)
		var posted types.NewOrder
		require.NoError(t, json.Unmarshal([]byte(*req.Body), &posted))
		assert.Equal(t, testCreds.Key, posted.Owner)
	}
}

func TestClient_GetOrder_ValidatesID(t *testing.T) {
	ft := newFakeTransport()
	ft.respond(EndpointGetOrder+"0xabc", http.StatusOK, `{"id":"0xabc"}`)
	c := newTransportClient(t, ft, testCreds)
	ctx := context.Background()

	for _, id := range []string{"", "../x", "0xabc/../../auth/api-key", "0xabc?x=1", "abc", "0x"} {
		_, err := c.GetOrder(ctx, id)
		assert.ErrorIs(t, err, types.ErrInvalidOrder, id)
	}
	assert.Empty(t, ft.calls())

	order, err := c.GetOrder(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", order.ID)
	calls := ft.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, EndpointGetOrder+"0xabc", calls[0].Path)
}
