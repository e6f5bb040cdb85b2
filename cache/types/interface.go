package types

import (
	"context"
	"errors"
	"time"
)

// Provider 缓存提供者接口，值以 JSON 序列化保存
type Provider interface {
	// Set 设置缓存项
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Get 获取缓存项，未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string, dest interface{}) error

	// Take 原子地读取并删除，只有一个调用方能拿到值，未命中返回 ErrCacheMiss
	Take(ctx context.Context, key string, dest interface{}) error

	// Delete 删除缓存项
	Delete(ctx context.Context, key string) error

	// Exists 检查缓存项是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Close 关闭缓存连接
	Close() error

	// Name 返回缓存提供者名称
	Name() string
}

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
