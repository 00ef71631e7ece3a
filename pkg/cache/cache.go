package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout GetOrLoad 中共享加载的超时
const DefaultLoadTimeout = 30 * time.Second

// Cache 通用缓存接口
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Clear()
	Size() int
}

// InMemoryCache 内存缓存实现，过期项在读取时淘汰
type InMemoryCache[K comparable, V any] struct {
	items      map[K]cacheItem[V]
	mu         sync.RWMutex
	defaultTTL time.Duration
	now        func() time.Time
	group      singleflight.Group

	loadTimeout time.Duration
}

// cacheItem 缓存项
type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

// NewInMemoryCache 创建新的内存缓存；defaultTTL <= 0 表示永不过期
func NewInMemoryCache[K comparable, V any](defaultTTL time.Duration) *InMemoryCache[K, V] {
	return &InMemoryCache[K, V]{
		items:      make(map[K]cacheItem[V]),
		defaultTTL:  defaultTTL,
		now:         time.Now,
		loadTimeout: DefaultLoadTimeout,
	}
}

// SetLoadTimeout 设置共享加载的超时；d <= 0 时恢复默认值
func (c *InMemoryCache[K, V]) SetLoadTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultLoadTimeout
	}
	c.mu.Lock()
	c.loadTimeout = d
	c.mu.Unlock()
}

func (c *InMemoryCache[K, V]) expired(item cacheItem[V]) bool {
	return !item.expiresAt.IsZero() && c.now().After(item.expiresAt)
}

// Get 获取缓存值
func (c *InMemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		var zero V
		return zero, false
	}
	if c.expired(item) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && c.expired(cur) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return item.value, true
}

// Set 设置缓存值；ttl 为 0 时使用默认 TTL
func (c *InMemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	item := cacheItem[V]{value: value}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item
}

// GetOrLoad 命中直接返回；否则调用 load 并写入缓存，同一个 key 的并发加载只执行一次
//
// load 失败时不写缓存。load 由所有等待者共享，不随发起者的 ctx 取消，
// 只受 loadTimeout 限制；每个调用方仍按自己的 ctx 提前返回。
func (c *InMemoryCache[K, V]) GetOrLoad(ctx context.Context, key K, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.RLock()
	timeout := c.loadTimeout
	c.mu.RUnlock()

	ch := c.group.DoChan(fmt.Sprint(key), func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.Set(key, v, 0)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Delete 删除缓存项
func (c *InMemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear 清空缓存
func (c *InMemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]cacheItem[V])
}

// Size 获取缓存大小（包含尚未淘汰的过期项）
func (c *InMemoryCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Cleanup 清理所有过期项，返回清理数量
func (c *InMemoryCache[K, V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, item := range c.items {
		if c.expired(item) {
			delete(c.items, key)
			n++
		}
	}
	return n
}
