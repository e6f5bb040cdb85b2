package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/internal/auth"
	"github.com/gin-gonic/gin"
)

// OAuthHandler Google 登录
type OAuthHandler struct {
	oauthService *auth.OAuthService
}

// NewOAuthHandler oauthService 为 nil 时接口返回 404
func NewOAuthHandler(oauthService *auth.OAuthService) *OAuthHandler {
	return &OAuthHandler{oauthService: oauthService}
}

// Login 跳转到授权页
func (h *OAuthHandler) Login(c *gin.Context) {
	if h.oauthService == nil {
		common.RespondError(c, http.StatusNotFound, "Google login is not configured")
		return
	}

	target, err := h.oauthService.Begin(c.Request.Context())
	if err != nil {
		log.Printf("[OAuth] Begin failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Redirect(http.StatusFound, target)
}

// Callback 授权回调
func (h *OAuthHandler) Callback(c *gin.Context) {
	if h.oauthService == nil {
		common.RespondError(c, http.StatusNotFound, "Google login is not configured")
		return
	}

	if reason := c.Query("error"); reason != "" {
		common.RespondError(c, http.StatusUnauthorized, "Google authentication was cancelled: "+reason)
		return
	}

	result, err := h.oauthService.Complete(c.Request.Context(), c.Query("state"), c.Query("code"))
	switch {
	case err == nil:
		respondSession(c, http.StatusOK, "Login successful", result)
	case errors.Is(err, auth.ErrOAuthState):
		common.RespondError(c, http.StatusBadRequest, "Invalid or expired OAuth state")
	case errors.Is(err, auth.ErrOAuthFailed):
		log.Printf("[OAuth] %v", err)
		common.RespondError(c, http.StatusUnauthorized, "Google authentication failed")
	case errors.Is(err, auth.ErrInactiveUser):
		common.RespondError(c, http.StatusForbidden, "This account is inactive")
	default:
		log.Printf("[OAuth] Callback failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
