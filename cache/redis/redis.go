package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anoixa/image-predict/cache/types"
	"github.com/go-redis/redis/v8"
)

// Config Redis 连接配置
type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// Redis 实现了 types.Provider 接口
type Redis struct {
	client *redis.Client
}

// NewRedis 创建一个新的Redis实例并检查连接
func NewRedis(cfg *Config) (*Redis, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{client: client}, nil
}

// Set 设置缓存项
func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get 获取缓存项
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Take GETDEL，需要 Redis 6.2+
func (r *Redis) Take(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除缓存项
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Exists 检查缓存项是否存在
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close 关闭缓存连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// Name 返回缓存提供者名称
func (r *Redis) Name() string {
	return "redis"
}
