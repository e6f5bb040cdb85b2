package middleware

import (
	"net/http"
	"strings"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextRoleKey     = "role"
)

// JWTAuth 校验 Authorization: Bearer <token> 并把用户信息写入上下文
func JWTAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.RespondErrorAbort(c, http.StatusUnauthorized, "No Authorization request header")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || token == "" {
			common.RespondErrorAbort(c, http.StatusBadRequest, "Authorization field format error")
			return
		}
		if scheme != "Bearer" {
			common.RespondErrorAbort(c, http.StatusUnauthorized, "Unsupported authentication scheme")
			return
		}

		claims, err := jwtService.ParseToken(token)
		if err != nil {
			common.RespondErrorAbort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		role := claims.Role
		if role == "" {
			role = models.RoleUser
		}

		c.Set(ContextUserIDKey, claims.UserID())
		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// CurrentUserID 当前登录用户 ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
