package auth

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/anoixa/image-predict/utils"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "image-predict"
	tokenTypeAccess = "access"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenPair 访问令牌与刷新令牌
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// AccessClaims 访问令牌载荷，Subject 为用户 ID
type AccessClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// UserID 从 Subject 解析用户 ID
func (c *AccessClaims) UserID() uint {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// JWTService 签发与校验 HS256 访问令牌
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewJWTService 创建 JWT 服务，密钥至少 32 个字符
func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) (*JWTService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters long, got %d", len(secret))
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	s := &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)

	log.Printf("[JWT] access ttl %v, refresh ttl %v", accessTTL, refreshTTL)
	return s, nil
}

// GenerateTokens 签发一对新令牌
func (s *JWTService) GenerateTokens(username string, userID uint, role string) (*TokenPair, error) {
	access, accessExp, err := s.GenerateAccessToken(username, userID, role)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  accessExp,
		RefreshToken:       refresh,
		RefreshTokenExpiry: refreshExp,
	}, nil
}

// GenerateAccessToken 签发访问令牌
func (s *JWTService) GenerateAccessToken(username string, userID uint, role string) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.accessTTL)

	claims := AccessClaims{
		Username: username,
		Role:     role,
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiry, nil
}

// GenerateRefreshToken 刷新令牌是不透明随机串，只在数据库中保存
func (s *JWTService) GenerateRefreshToken() (string, time.Time, error) {
	token, err := utils.GenerateRandomToken(64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return token, s.now().Add(s.refreshTTL), nil
}

// ParseToken 校验签名、签发者与过期时间，只接受访问令牌
func (s *JWTService) ParseToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Type != tokenTypeAccess || claims.UserID() == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
