package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/api/middleware"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/internal/auth"
	"github.com/gin-gonic/gin"
)

// MsgPasswordSet 重置成功提示
const MsgPasswordSet = "Your password has been set. You may go ahead and log in now."

const resetConfirmPath = "/api/auth/password/reset/confirm"

// AccountHandler 注册、找回密码与用户信息
type AccountHandler struct {
	accountsRepo    *accounts.Repository
	registerService *auth.RegisterService
	resetService    *auth.ResetService
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(accountsRepo *accounts.Repository, registerService *auth.RegisterService, resetService *auth.ResetService) *AccountHandler {
	return &AccountHandler{
		accountsRepo:    accountsRepo,
		registerService: registerService,
		resetService:    resetService,
	}
}

type resetRequestBody struct {
	Email string `json:"email" binding:"required"`
}

type resetConfirmBody struct {
	UID             string `json:"uid" binding:"required"`
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

// Register 注册并直接登录
func (h *AccountHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.registerService.Register(c.Request.Context(), req)
	if err != nil {
		if auth.IsValidationError(err) {
			common.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[Register] Failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondSession(c, http.StatusCreated, "Registration successful", result)
}

// Me 当前用户信息
func (h *AccountHandler) Me(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		common.RespondError(c, http.StatusUnauthorized, "Invalid user session")
		return
	}

	user, err := h.accountsRepo.WithContext(c.Request.Context()).GetUserByID(userID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			common.RespondError(c, http.StatusUnauthorized, "Invalid user session")
			return
		}
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	common.RespondSuccess(c, newUserDetails(user))
}

// PasswordReset 无论邮箱是否存在都返回同样的提示
func (h *AccountHandler) PasswordReset(c *gin.Context) {
	var req resetRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.resetService.RequestReset(c.Request.Context(), req.Email); err != nil {
		log.Printf("[Reset] Request failed: %v", err)
	}

	common.RespondSuccessMessage(c, auth.MsgResetSent, nil)
}

// PasswordResetLink GET /reset/:uid/:token，邮件链接的落地页，返回 uid 与 token 供客户端提交新密码
func (h *AccountHandler) PasswordResetLink(c *gin.Context) {
	uid, token := c.Param("uid"), c.Param("token")

	err := h.resetService.CheckReset(c.Request.Context(), uid, token)
	switch {
	case err == nil:
		common.RespondSuccess(c, gin.H{
			"uid":         uid,
			"token":       token,
			"confirm_url": resetConfirmPath,
		})
	case errors.Is(err, auth.ErrResetLinkInvalid):
		common.RespondError(c, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[Reset] Link check failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// PasswordResetConfirm 校验重置链接并设置新密码
func (h *AccountHandler) PasswordResetConfirm(c *gin.Context) {
	var req resetConfirmBody
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	err := h.resetService.ConfirmReset(c.Request.Context(), req.UID, req.Token, req.Password, req.PasswordConfirm)
	switch {
	case err == nil:
		common.RespondSuccessMessage(c, MsgPasswordSet, nil)
	case errors.Is(err, auth.ErrResetLinkInvalid), auth.IsValidationError(err):
		common.RespondError(c, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[Reset] Confirm failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
