package ratelimit

import (
	"context"
	"sync"
	"time"
)

// 端点限流键
const (
	KeyOrderPost   = "clob:order:post"
	KeyOrderDelete = "clob:order:delete"
	KeyOrderGet    = "clob:order:get"
	KeyOrdersGet   = "clob:orders:get"
	KeyBookGet     = "clob:book:get"
	KeyMarketGet   = "clob:market:get"
	KeyAuth        = "clob:auth"
	KeyGeneral     = "clob:general"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
}

// TokenBucket 令牌桶速率限制器
type TokenBucket struct {
	capacity   float64   // 桶容量
	tokens     float64   // 当前令牌数
	refillRate float64   // 每秒补充的令牌数
	lastRefill time.Time // 上次补充时间
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶，初始为满
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// refill 按经过的时间补充令牌，调用方持有锁
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now
}

// Allow 检查是否允许请求，允许时消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	_, ok := tb.reserve()
	return ok
}

// reserve 尝试取令牌；失败时返回下一个令牌到达前需要等待的时间
func (tb *TokenBucket) reserve() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}
	if tb.refillRate <= 0 {
		return time.Second, false
	}
	missing := 1 - tb.tokens
	return time.Duration(missing / tb.refillRate * float64(time.Second)), false
}

// Wait 等待直到允许请求
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := tb.reserve()
		if ok {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Remaining 当前可用令牌数
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

// SlidingWindow 滑动窗口速率限制器
type SlidingWindow struct {
	limit      int           // 限制数量
	windowSize time.Duration // 窗口大小
	requests   []time.Time   // 窗口内的请求时间，按时间递增
	now        func() time.Time
	mu         sync.Mutex
}

// NewSlidingWindow 创建新的滑动窗口速率限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// prune 移除窗口外的请求，调用方持有锁
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]
}

func (sw *SlidingWindow) reserve() (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.prune(now)
	if len(sw.requests) < sw.limit {
		sw.requests = append(sw.requests, now)
		return 0, true
	}
	if len(sw.requests) == 0 {
		return sw.windowSize, false
	}
	wait := sw.requests[0].Add(sw.windowSize).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

// Allow 检查是否允许请求
func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.reserve()
	return ok
}

// Wait 等待直到允许请求
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		wait, ok := sw.reserve()
		if ok {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Remaining 获取剩余请求数
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(sw.now())
	return max(0, sw.limit-len(sw.requests))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimitManager 按端点键管理限流器；未注册的键使用 clob:general
type RateLimitManager struct {
	limiters map[string]RateLimiter
	mu       sync.RWMutex
}

// NewRateLimitManager 创建带交易所默认限额的管理器
func NewRateLimitManager() *RateLimitManager {
	manager := &RateLimitManager{
		limiters: make(map[string]RateLimiter),
	}
	manager.initDefaultLimiters()
	return manager
}

// initDefaultLimiters 交易所公布的每 10 秒限额
func (rlm *RateLimitManager) initDefaultLimiters() {
	rlm.limiters[KeyOrderPost] = NewTokenBucket(2400, 240)
	rlm.limiters[KeyOrderDelete] = NewTokenBucket(2400, 240)
	rlm.limiters[KeyOrderGet] = NewSlidingWindow(150, 10*time.Second)
	rlm.limiters[KeyOrdersGet] = NewSlidingWindow(150, 10*time.Second)
	rlm.limiters[KeyBookGet] = NewSlidingWindow(200, 10*time.Second)
	rlm.limiters[KeyMarketGet] = NewSlidingWindow(200, 10*time.Second)
	rlm.limiters[KeyAuth] = NewSlidingWindow(100, 10*time.Second)
	rlm.limiters[KeyGeneral] = NewSlidingWindow(5000, 10*time.Second)
}

// Set 注册或替换某个端点的限流器
func (rlm *RateLimitManager) Set(endpoint string, limiter RateLimiter) {
	rlm.mu.Lock()
	defer rlm.mu.Unlock()
	rlm.limiters[endpoint] = limiter
}

// GetLimiter 获取指定端点的速率限制器
func (rlm *RateLimitManager) GetLimiter(endpoint string) RateLimiter {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()

	if limiter, exists := rlm.limiters[endpoint]; exists {
		return limiter
	}
	return rlm.limiters[KeyGeneral]
}

// Wait 等待直到允许请求；没有任何可用限流器时直接放行
func (rlm *RateLimitManager) Wait(ctx context.Context, endpoint string) error {
	limiter := rlm.GetLimiter(endpoint)
	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

// Allow 检查是否允许请求
func (rlm *RateLimitManager) Allow(endpoint string) bool {
	limiter := rlm.GetLimiter(endpoint)
	return limiter == nil || limiter.Allow()
}

// Remaining 获取剩余请求数，-1 表示不限
func (rlm *RateLimitManager) Remaining(endpoint string) int {
	limiter := rlm.GetLimiter(endpoint)
	if limiter == nil {
		return -1
	}
	return limiter.Remaining()
}
