package cache

import (
	"fmt"
	"log"
	"time"

	"github.com/anoixa/image-predict/cache/gocache"
	"github.com/anoixa/image-predict/cache/memory"
	"github.com/anoixa/image-predict/cache/redis"
	"github.com/anoixa/image-predict/config"
)

// NewProvider 按 cache_type 创建缓存提供者
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.CacheType {
	case "", "memory":
		return memory.NewMemory(64 << 20)
	case "gocache":
		return gocache.NewGoCache(10*time.Minute, 5*time.Minute), nil
	case "redis":
		provider, err := redis.NewRedis(&redis.Config{
			Address:  cfg.CacheRedisAddr,
			Password: cfg.CacheRedisPassword,
			DB:       cfg.CacheRedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.CacheRedisAddr, err)
		}
		log.Printf("[Cache] Connected to redis at %s", cfg.CacheRedisAddr)
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
}
