package middleware

import (
	"time"

	"github.com/anoixa/image-predict/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics 按路由模板记录请求数与耗时
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
