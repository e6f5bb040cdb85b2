package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/anoixa/image-predict/api/common"
	"github.com/gin-gonic/gin"
)

// AllowedHosts 拒绝 Host 头不在白名单内的请求，"*" 表示不限制
func AllowedHosts(hosts []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(strings.TrimSpace(h))] = true
	}

	return func(c *gin.Context) {
		if len(allowed) == 0 || allowed["*"] {
			c.Next()
			return
		}

		host := c.Request.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		host = strings.ToLower(host)

		if allowed[host] || matchesSubdomain(allowed, host) {
			c.Next()
			return
		}

		common.RespondErrorAbort(c, http.StatusBadRequest, "Invalid HTTP_HOST header.")
	}
}

// matchesSubdomain 支持 ".example.com" 形式匹配所有子域名
func matchesSubdomain(allowed map[string]bool, host string) bool {
	for pattern := range allowed {
		if strings.HasPrefix(pattern, ".") && (strings.HasSuffix(host, pattern) || host == pattern[1:]) {
			return true
		}
	}
	return false
}
