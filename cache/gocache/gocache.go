package gocache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anoixa/image-predict/cache/types"
	gocachepkg "github.com/patrickmn/go-cache"
)

// GoCache go-cache 实现
type GoCache struct {
	client *gocachepkg.Cache
	takeMu sync.Mutex
}

// NewGoCache 创建新的GoCache实例
func NewGoCache(defaultExpiration, cleanupInterval time.Duration) *GoCache {
	return &GoCache{
		client: gocachepkg.New(defaultExpiration, cleanupInterval),
	}
}

// Set 设置缓存项
func (g *GoCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	g.client.Set(key, data, expiration)
	return nil
}

// Get 获取缓存项
func (g *GoCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, found := g.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}
	return json.Unmarshal(data.([]byte), dest)
}

// Take 读取后立即删除
func (g *GoCache) Take(ctx context.Context, key string, dest interface{}) error {
	g.takeMu.Lock()
	data, found := g.client.Get(key)
	if found {
		g.client.Delete(key)
	}
	g.takeMu.Unlock()

	if !found {
		return types.ErrCacheMiss
	}
	return json.Unmarshal(data.([]byte), dest)
}

// Delete 删除缓存项
func (g *GoCache) Delete(ctx context.Context, key string) error {
	g.client.Delete(key)
	return nil
}

// Exists 检查缓存项是否存在
func (g *GoCache) Exists(ctx context.Context, key string) (bool, error) {
	_, found := g.client.Get(key)
	return found, nil
}

// Close go-cache 无需关闭
func (g *GoCache) Close() error {
	g.client.Flush()
	return nil
}

// Name 返回缓存提供者名称
func (g *GoCache) Name() string {
	return "gocache"
}
