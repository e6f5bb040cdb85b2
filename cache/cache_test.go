package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anoixa/image-predict/cache/gocache"
	"github.com/anoixa/image-predict/cache/memory"
	"github.com/anoixa/image-predict/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type oauthState struct {
	Verifier string `json:"verifier"`
	Next     string `json:"next"`
}

func providersUnderTest(t *testing.T) []Provider {
	mem, err := memory.NewMemory(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	gc := gocache.NewGoCache(time.Minute, time.Minute)
	t.Cleanup(func() { _ = gc.Close() })

	return []Provider{mem, gc}
}

func TestProviders_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for _, p := range providersUnderTest(t) {
		t.Run(p.Name(), func(t *testing.T) {
			in := oauthState{Verifier: "abc", Next: "/predictions"}
			require.NoError(t, p.Set(ctx, "oauth:state:1", in, time.Minute))

			var out oauthState
			require.NoError(t, p.Get(ctx, "oauth:state:1", &out))
			assert.Equal(t, in, out)

			ok, err := p.Exists(ctx, "oauth:state:1")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, p.Delete(ctx, "oauth:state:1"))
			err = p.Get(ctx, "oauth:state:1", &out)
			assert.True(t, IsCacheMiss(err))

			ok, err = p.Exists(ctx, "oauth:state:1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestProviders_TakeSingleWinner(t *testing.T) {
	ctx := context.Background()
	for _, p := range providersUnderTest(t) {
		t.Run(p.Name(), func(t *testing.T) {
			require.NoError(t, p.Set(ctx, "oauth:state:race", true, time.Minute))

			var (
				wg   sync.WaitGroup
				wins atomic.Int32
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					var ok bool
					if err := p.Take(ctx, "oauth:state:race", &ok); err == nil && ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, wins.Load())
			var ok bool
			assert.True(t, IsCacheMiss(p.Take(ctx, "oauth:state:race", &ok)))
		})
	}
}

func TestProviders_Miss(t *testing.T) {
	ctx := context.Background()
	for _, p := range providersUnderTest(t) {
		var out string
		err := p.Get(ctx, "missing", &out)
		assert.ErrorIs(t, err, ErrCacheMiss, p.Name())
	}
}

func TestGoCache_Expiration(t *testing.T) {
	ctx := context.Background()
	gc := gocache.NewGoCache(time.Minute, time.Minute)

	require.NoError(t, gc.Set(ctx, "short", "v", 20*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	var out string
	assert.True(t, IsCacheMiss(gc.Get(ctx, "short", &out)))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(&config.Config{CacheType: "gocache"})
	require.NoError(t, err)
	assert.Equal(t, "gocache", p.Name())

	p, err = NewProvider(&config.Config{CacheType: ""})
	require.NoError(t, err)
	assert.Equal(t, "memory", p.Name())
	_ = p.Close()

	_, err = NewProvider(&config.Config{CacheType: "memcached"})
	assert.Error(t, err)
}
