package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/anoixa/image-predict/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// clientLimiter 单个 IP 的限流状态：令牌桶或固定窗口计数，二选一
type clientLimiter struct {
	mu          sync.Mutex
	lastSeen    time.Time
	bucket      *rate.Limiter
	windowStart time.Time
	count       int
}

// allow 固定窗口：now-windowStart >= window 时重新计数
func (c *clientLimiter) allow(now time.Time, window time.Duration, limit int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = now

	if c.bucket != nil {
		return c.bucket.AllowN(now, 1)
	}
	if c.windowStart.IsZero() || now.Sub(c.windowStart) >= window {
		c.windowStart = now
		c.count = 0
	}
	if c.count >= limit {
		return false
	}
	c.count++
	return true
}

func (c *clientLimiter) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

// IPRateLimiter 按客户端 IP 限流，window 为 0 时是令牌桶，否则是固定窗口计数
type IPRateLimiter struct {
	limit      rate.Limit
	burst      int
	window     time.Duration
	expireTime time.Duration
	now        func() time.Time
	limiterMap *sync.Map
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewIPRateLimiter Create new IP-based rate limits
func NewIPRateLimiter(rps float64, burst int, expireTime time.Duration) *IPRateLimiter {
	return newIPRateLimiter(rate.Limit(rps), burst, 0, expireTime)
}

// NewWindowRateLimiter 每个 IP 在 window 内最多 count 次，例如 5 次/小时；窗口从第一次请求开始计时
func NewWindowRateLimiter(count int, window, expireTime time.Duration) *IPRateLimiter {
	if count <= 0 {
		count = 1
	}
	if window <= 0 {
		window = time.Hour
	}
	if expireTime < window {
		expireTime = window
	}
	return newIPRateLimiter(0, count, window, expireTime)
}

func newIPRateLimiter(limit rate.Limit, burst int, window, expireTime time.Duration) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limit:      limit,
		burst:      burst,
		window:     window,
		expireTime: expireTime,
		now:        time.Now,
		limiterMap: &sync.Map{},
		stopChan:   make(chan struct{}),
	}

	// 启动后台清理 goroutine
	go limiter.cleanupStaleClients()

	return limiter
}

// Allow 记录 key 的一次请求，超限返回 false
func (rl *IPRateLimiter) Allow(key string) bool {
	now := rl.now()
	val, ok := rl.limiterMap.Load(key)
	if !ok {
		client := &clientLimiter{lastSeen: now}
		if rl.window == 0 {
			client.bucket = rate.NewLimiter(rl.limit, rl.burst)
		}
		val, _ = rl.limiterMap.LoadOrStore(key, client)
	}
	return val.(*clientLimiter).allow(now, rl.window, rl.burst)
}

// Middleware Return a Gin middleware handler
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

// Stop 停止后台清理，可重复调用
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) cleanupStaleClients() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep(time.Now())
		case <-rl.stopChan:
			return
		}
	}
}

// sweep 删除超过 expireTime 未访问的条目
func (rl *IPRateLimiter) sweep(now time.Time) {
	rl.limiterMap.Range(func(key, value interface{}) bool {
		if value.(*clientLimiter).idleSince(now) > rl.expireTime {
			rl.limiterMap.Delete(key)
		}
		return true
	})
}
