package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/internal/auth"
	"github.com/anoixa/image-predict/utils"

	"github.com/gin-gonic/gin"
)

const (
	refreshTokenCookie = "refresh_token"
	deviceIDCookie     = "device_id"
	authCookiePath     = "/api/auth/"
)

// LoginHandler 登录处理器
type LoginHandler struct {
	loginService *auth.LoginService
}

// NewLoginHandler 使用 LoginService 创建登录处理器
func NewLoginHandler(loginService *auth.LoginService) *LoginHandler {
	return &LoginHandler{
		loginService: loginService,
	}
}

type userAuthRequestBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken       string       `json:"access_token"`
	AccessTokenExpiry int64        `json:"access_token_expiry"`
	User              *userDetails `json:"user,omitempty"`
}

type userDetails struct {
	ID                uint       `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	IsAdmin           bool       `json:"is_admin"`
	HasUsablePassword bool       `json:"has_usable_password"`
	DateJoined        time.Time  `json:"date_joined"`
	LastLogin         *time.Time `json:"last_login"`
}

func newUserDetails(u *models.User) *userDetails {
	if u == nil {
		return nil
	}
	return &userDetails{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              u.Role,
		IsAdmin:           u.IsAdmin(),
		HasUsablePassword: u.HasUsablePassword(),
		DateJoined:        u.CreatedAt,
		LastLogin:         u.LastLogin,
	}
}

// LoginHandlerFunc user login
func (h *LoginHandler) LoginHandlerFunc(context *gin.Context) {
	var req userAuthRequestBody
	if err := context.ShouldBindJSON(&req); err != nil {
		common.RespondError(context, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.loginService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			common.RespondError(context, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Printf("[Login] Failed for user %s: %v", utils.SanitizeLogUsername(req.Username), err)
		common.RespondError(context, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondSession(context, http.StatusOK, "Login successful", result)
}

// RefreshTokenHandlerFunc Refresh token authentication
func (h *LoginHandler) RefreshTokenHandlerFunc(context *gin.Context) {
	refreshToken, err := context.Cookie(refreshTokenCookie)
	if err != nil {
		common.RespondError(context, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	deviceID, err := context.Cookie(deviceIDCookie)
	if err != nil {
		common.RespondError(context, http.StatusUnauthorized, "Device ID not found")
		return
	}

	result, err := h.loginService.RefreshToken(refreshToken, deviceID)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidRefresh) {
			log.Printf("[Login] Refresh failed: %v", err)
		}
		common.RespondError(context, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	setAuthCookies(context, result.RefreshToken, deviceID, int(time.Until(result.RefreshTokenExpiry).Seconds()))

	common.RespondSuccessMessage(context, "Refresh token successful", loginResponse{
		AccessToken:       "Bearer " + result.AccessToken,
		AccessTokenExpiry: result.AccessTokenExpiry.Unix(),
	})
}

// LogoutHandlerFunc user logout
func (h *LoginHandler) LogoutHandlerFunc(context *gin.Context) {
	deviceID, err := context.Cookie(deviceIDCookie)
	if err != nil {
		common.RespondSuccessMessage(context, "Already logged out or session invalid", nil)
		return
	}

	if err := h.loginService.Logout(deviceID); err != nil {
		log.Printf("[Login] Failed to delete device: %v", err)
	}

	clearAuthCookies(context)
	common.RespondSuccessMessage(context, "Logout successful", nil)
}

// respondSession 写入刷新令牌 cookie 并返回访问令牌
func respondSession(context *gin.Context, status int, msg string, result *auth.LoginResult) {
	setAuthCookies(context, result.RefreshToken, result.DeviceID, int(time.Until(result.RefreshTokenExpiry).Seconds()))

	common.Respond(context, status, common.StatusSuccess, msg, loginResponse{
		AccessToken:       "Bearer " + result.AccessToken,
		AccessTokenExpiry: result.AccessTokenExpiry.Unix(),
		User:              newUserDetails(result.User),
	})
}

// setAuthCookies 设置 refresh_token 和 device_id 的 cookie
func setAuthCookies(c *gin.Context, refreshToken, deviceID string, maxAge int) {
	secure := config.IsProduction()

	for name, value := range map[string]string{
		refreshTokenCookie: refreshToken,
		deviceIDCookie:     deviceID,
	} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    value,
			MaxAge:   maxAge,
			Path:     authCookiePath,
			Secure:   secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// clearAuthCookies 清除认证相关的 cookie
func clearAuthCookies(c *gin.Context) {
	// 将 MaxAge 设置为 -1 来让浏览器删除 Cookie
	c.SetCookie(refreshTokenCookie, "", -1, authCookiePath, "", false, true)
	c.SetCookie(deviceIDCookie, "", -1, authCookiePath, "", false, true)
}
