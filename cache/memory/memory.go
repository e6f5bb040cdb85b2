package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anoixa/image-predict/cache/types"
	"github.com/dgraph-io/ristretto"
)

// 每个计数器约对应 10 个条目，条目按 1KB 估算
const (
	avgEntryBytes   = 1 << 10
	countersPerItem = 10
)

// Memory 进程内 ristretto 缓存，值以 JSON 字节保存，按字节数计费
type Memory struct {
	client *ristretto.Cache
	takeMu sync.Mutex
}

// NewMemory 创建容量上限为 maxBytes 的内存缓存
func NewMemory(maxBytes int64) (*Memory, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxBytes / avgEntryBytes * countersPerItem,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{client: client}, nil
}

func (m *Memory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	// ristretto 异步写入，Wait 之后 Get 才能读到
	if m.client.SetWithTTL(key, data, int64(len(data)), expiration) {
		m.client.Wait()
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string, dest interface{}) error {
	value, found := m.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}
	data, ok := value.([]byte)
	if !ok {
		return types.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *Memory) Take(ctx context.Context, key string, dest interface{}) error {
	m.takeMu.Lock()
	value, found := m.client.Get(key)
	if found {
		m.client.Del(key)
	}
	m.takeMu.Unlock()

	data, ok := value.([]byte)
	if !found || !ok {
		return types.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.client.Del(key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.client.Get(key)
	return found, nil
}

func (m *Memory) Close() error {
	m.client.Close()
	return nil
}

func (m *Memory) Name() string {
	return "memory"
}
