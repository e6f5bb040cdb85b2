package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/utils"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token or device ID")
)

// LoginResult 登录结果
type LoginResult struct {
	User               *models.User
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
	DeviceID           string
}

// RefreshResult Token 刷新结果
type RefreshResult struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
	DeviceID           string
}

// LoginService 登录服务
type LoginService struct {
	accountsRepo *accounts.Repository
	devicesRepo  *accounts.DeviceRepository
	jwtService   *JWTService
}

// NewLoginService 创建新的登录服务
func NewLoginService(
	accountsRepo *accounts.Repository,
	devicesRepo *accounts.DeviceRepository,
	jwtService *JWTService,
) *LoginService {
	return &LoginService{
		accountsRepo: accountsRepo,
		devicesRepo:  devicesRepo,
		jwtService:   jwtService,
	}
}

// ValidateCredentials 验证用户凭据，用户不存在或无本地密码时返回 false
func (s *LoginService) ValidateCredentials(username, password string) (*models.User, bool, error) {
	user, err := s.accountsRepo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.IsActive || !user.HasUsablePassword() {
		return nil, false, nil
	}

	ok, err := cryptopackage.ComparePasswordAndHash(password, user.Password)
	if err != nil {
		return nil, false, fmt.Errorf("password comparison failed: %w", err)
	}

	return user, ok, nil
}

// Login 执行登录操作
func (s *LoginService) Login(username, password string) (*LoginResult, error) {
	user, valid, err := s.ValidateCredentials(username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to validate credentials: %w", err)
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if cryptopackage.NeedsRehash(user.Password) {
		hashed, err := cryptopackage.GenerateFromPassword(password)
		if err == nil {
			err = s.accountsRepo.UpdatePassword(user.ID, hashed)
		}
		if err != nil {
			utils.LogIfDevf("[Login] Failed to rehash password for user %d: %v", user.ID, err)
		}
	}

	return s.IssueSession(user)
}

// IssueSession 为已认证的用户签发令牌并登记设备
func (s *LoginService) IssueSession(user *models.User) (*LoginResult, error) {
	tokenPair, err := s.jwtService.GenerateTokens(user.Username, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	deviceID := uuid.New().String()
	err = s.devicesRepo.CreateLoginDevice(user.ID, deviceID, tokenPair.RefreshToken, tokenPair.RefreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to store device token: %w", err)
	}

	if err := s.accountsRepo.TouchLastLogin(user.ID, time.Now()); err != nil {
		utils.LogIfDevf("[Login] Failed to update last_login for user %d: %v", user.ID, err)
	}

	return &LoginResult{
		User:               user,
		AccessToken:        tokenPair.AccessToken,
		AccessTokenExpiry:  tokenPair.AccessTokenExpiry,
		RefreshToken:       tokenPair.RefreshToken,
		RefreshTokenExpiry: tokenPair.RefreshTokenExpiry,
		DeviceID:           deviceID,
	}, nil
}

// RefreshToken 刷新访问令牌
func (s *LoginService) RefreshToken(refreshToken, deviceID string) (*RefreshResult, error) {
	device, err := s.devicesRepo.GetDeviceByRefreshTokenAndDeviceID(refreshToken, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	if device == nil {
		return nil, ErrInvalidRefresh
	}

	user, err := s.accountsRepo.GetUserByID(device.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidRefresh
	}

	newRefreshToken, newRefreshTokenExpiry, err := s.jwtService.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate new refresh token: %w", err)
	}

	// 轮换刷新令牌
	err = s.devicesRepo.RotateRefreshToken(user.ID, device.DeviceID, newRefreshToken, newRefreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to update device token: %w", err)
	}

	accessToken, accessTokenExpiry, err := s.jwtService.GenerateAccessToken(user.Username, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new access token: %w", err)
	}

	return &RefreshResult{
		AccessToken:        accessToken,
		AccessTokenExpiry:  accessTokenExpiry,
		RefreshToken:       newRefreshToken,
		RefreshTokenExpiry: newRefreshTokenExpiry,
		DeviceID:           deviceID,
	}, nil
}

// Logout 执行登出操作
func (s *LoginService) Logout(deviceID string) error {
	return s.devicesRepo.DeleteDeviceByDeviceID(deviceID)
}

// RevokeAll 注销用户的全部设备
func (s *LoginService) RevokeAll(userID uint) error {
	return s.devicesRepo.DeleteDevicesByUser(userID)
}
