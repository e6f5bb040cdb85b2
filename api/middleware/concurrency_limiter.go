package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/anoixa/image-predict/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

// ConcurrencyLimiter 限制同时执行的推理请求数，超出的请求排队等待
type ConcurrencyLimiter struct {
	sem     *semaphore.Weighted
	waiting atomic.Int64
}

func NewConcurrencyLimiter(maxConcurrency int64) *ConcurrencyLimiter {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &ConcurrencyLimiter{sem: semaphore.NewWeighted(maxConcurrency)}
}

// Waiting 当前排队中的请求数
func (cl *ConcurrencyLimiter) Waiting() int64 {
	return cl.waiting.Load()
}

// Queue 最多排队 timeout，超时返回 503；客户端提前断开则直接中止
func (cl *ConcurrencyLimiter) Queue(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cl.sem.TryAcquire(1) {
			if err := cl.wait(c.Request.Context(), timeout); err != nil {
				if errors.Is(c.Request.Context().Err(), context.Canceled) {
					c.Abort()
					return
				}
				common.RespondErrorAbort(c, http.StatusServiceUnavailable, "Server is busy, please try again later")
				return
			}
		}
		defer cl.sem.Release(1)

		c.Next()
	}
}

func (cl *ConcurrencyLimiter) wait(parent context.Context, timeout time.Duration) error {
	cl.waiting.Add(1)
	defer cl.waiting.Add(-1)

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return cl.sem.Acquire(ctx, 1)
}
