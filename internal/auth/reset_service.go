package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/internal/mail"
	"github.com/anoixa/image-predict/utils"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
)

// MsgResetSent 无论邮箱是否存在都返回同样的提示
const MsgResetSent = "We've emailed you instructions for setting your password, if an account exists with the email you entered."

// ErrResetLinkInvalid 重置链接无效或已使用
var ErrResetLinkInvalid = errors.New("The password reset link was invalid, possibly because it has already been used.")

// ResetService 找回密码服务
type ResetService struct {
	accountsRepo *accounts.Repository
	resetRepo    *accounts.ResetTokenRepository
	loginService *LoginService
	mailer       mail.Sender
	baseURL      string
	ttl          time.Duration
	dispatch     func(func())
}

// NewResetService 创建找回密码服务
func NewResetService(
	accountsRepo *accounts.Repository,
	resetRepo *accounts.ResetTokenRepository,
	loginService *LoginService,
	mailer mail.Sender,
	baseURL string,
	ttl time.Duration,
) *ResetService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetService{
		accountsRepo: accountsRepo,
		resetRepo:    resetRepo,
		loginService: loginService,
		mailer:       mailer,
		baseURL:      baseURL,
		ttl:          ttl,
		dispatch:     utils.SafeGo,
	}
}

// EncodeUID 用户 ID 编码为 URL 安全的 base64
func EncodeUID(id uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

// DecodeUID EncodeUID 的逆操作
func DecodeUID(uid string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// RequestReset 为邮箱对应的用户签发令牌并异步发信，用户不存在时静默返回
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.accountsRepo.WithContext(ctx).GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			utils.LogIfDevf("[Reset] No account for %s", utils.SanitizeLogUsername(email))
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if !user.IsActive || !user.HasUsablePassword() {
		return nil
	}

	token, err := utils.GenerateRandomToken(32)
	if err != nil {
		return err
	}
	if err := s.resetRepo.WithContext(ctx).Create(user.ID, token, time.Now().Add(s.ttl)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/reset/%s/%s", s.baseURL, EncodeUID(user.ID), token)
	body := fmt.Sprintf("You're receiving this email because you requested a password reset for your user account.\n\n"+
		"Please go to the following page and choose a new password:\n\n%s\n\n"+
		"Your username, in case you've forgotten: %s\n", link, user.Username)
	to := user.Email

	s.dispatch(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.mailer.Send(sendCtx, to, "Password reset", body); err != nil {
			log.Printf("[Reset] Failed to send reset mail: %v", err)
		}
	})
	return nil
}

// CheckReset 打开邮件链接时校验，令牌仍可用于 ConfirmReset
func (s *ResetService) CheckReset(ctx context.Context, uid, token string) error {
	user, err := s.resetUser(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.resetRepo.WithContext(ctx).Check(user.ID, token, time.Now()); err != nil {
		if errors.Is(err, accounts.ErrResetTokenInvalid) {
			return ErrResetLinkInvalid
		}
		return err
	}
	return nil
}

func (s *ResetService) resetUser(ctx context.Context, uid string) (*models.User, error) {
	id, err := DecodeUID(uid)
	if err != nil {
		return nil, ErrResetLinkInvalid
	}
	user, err := s.accountsRepo.WithContext(ctx).GetUserByID(id)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return nil, ErrResetLinkInvalid
		}
		return nil, err
	}
	return user, nil
}

// ConfirmReset 校验令牌并设置新密码，成功后注销所有设备
func (s *ResetService) ConfirmReset(ctx context.Context, uid, token, password, passwordConfirm string) error {
	user, err := s.resetUser(ctx, uid)
	if err != nil {
		return err
	}

	if password != passwordConfirm {
		return &ValidationError{Field: "password_confirm", Msg: "The two password fields didn't match."}
	}
	if err := ValidatePassword(password, user.Username, user.Email); err != nil {
		return err
	}

	if err := s.resetRepo.WithContext(ctx).Consume(user.ID, token, time.Now()); err != nil {
		if errors.Is(err, accounts.ErrResetTokenInvalid) {
			return ErrResetLinkInvalid
		}
		return err
	}

	hashed, err := cryptopackage.GenerateFromPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.accountsRepo.WithContext(ctx).UpdatePassword(user.ID, hashed); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if err := s.loginService.RevokeAll(user.ID); err != nil {
		log.Printf("[Reset] Failed to revoke sessions for user %d: %v", user.ID, err)
	}

	log.Printf("[Reset] Password reset for user %d", user.ID)
	return nil
}
