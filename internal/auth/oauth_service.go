package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/anoixa/image-predict/cache"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/utils"
)

const (
	googleIssuer   = "https://accounts.google.com"
	googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"
	stateKeyPrefix = "oauth:state:"
	stateTTL       = 300 * time.Second
)

var (
	ErrOAuthState   = errors.New("invalid or expired oauth state")
	ErrOAuthFailed  = errors.New("oauth login failed")
	ErrInactiveUser = errors.New("user account is disabled")
)

// Identity 第三方返回的用户资料
type Identity struct {
	Subject       string `mapstructure:"sub" json:"-"`
	Email         string `mapstructure:"email" json:"email"`
	EmailVerified bool   `mapstructure:"email_verified" json:"email_verified"`
	Name          string `mapstructure:"name" json:"name"`
	GivenName     string `mapstructure:"given_name" json:"given_name"`
	FamilyName    string `mapstructure:"family_name" json:"family_name"`
	Picture       string `mapstructure:"picture" json:"picture"`
}

// IdentityProvider OAuth 提供者
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// GoogleProvider Google OpenID Connect
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider 创建 Google 提供者，签名公钥按需拉取
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	keySet := oidc.NewRemoteKeySet(context.Background(), googleCertsURL)
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{ClientID: clientID}),
	}
}

// Name 提供者标识
func (p *GoogleProvider) Name() string {
	return models.ProviderGoogle
}

// AuthCodeURL 授权跳转地址
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange 用授权码换取并校验 ID Token
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("read id_token claims: %w", err)
	}
	return DecodeIdentity(claims)
}

// DecodeIdentity 将 claims 解码为 Identity，兼容字符串形式的布尔值
func DecodeIdentity(claims map[string]interface{}) (*Identity, error) {
	var id Identity
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &id,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(claims); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	if id.Subject == "" {
		return nil, errors.New("claims have no subject")
	}
	return &id, nil
}

// OAuthService 第三方登录流程
type OAuthService struct {
	provider     IdentityProvider
	cache        cache.Provider
	accountsRepo *accounts.Repository
	socialRepo   *accounts.SocialRepository
	loginService *LoginService
}

// NewOAuthService 创建第三方登录服务
func NewOAuthService(
	provider IdentityProvider,
	cacheProvider cache.Provider,
	accountsRepo *accounts.Repository,
	socialRepo *accounts.SocialRepository,
	loginService *LoginService,
) *OAuthService {
	return &OAuthService{
		provider:     provider,
		cache:        cacheProvider,
		accountsRepo: accountsRepo,
		socialRepo:   socialRepo,
		loginService: loginService,
	}
}

// Begin 生成 state 并返回授权地址
func (s *OAuthService) Begin(ctx context.Context) (string, error) {
	state, err := utils.GenerateRandomToken(24)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, stateKeyPrefix+state, true, stateTTL); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return s.provider.AuthCodeURL(state), nil
}

// Complete 校验 state、换取身份并登录，state 只能使用一次
func (s *OAuthService) Complete(ctx context.Context, state, code string) (*LoginResult, error) {
	if state == "" || code == "" {
		return nil, ErrOAuthState
	}

	var ok bool
	if err := s.cache.Take(ctx, stateKeyPrefix+state, &ok); err != nil {
		if cache.IsCacheMiss(err) {
			return nil, ErrOAuthState
		}
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if !ok {
		return nil, ErrOAuthState
	}

	identity, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOAuthFailed, err)
	}

	user, err := s.resolveUser(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	return s.loginService.IssueSession(user)
}

// resolveUser 已关联账号 > 同一已验证邮箱的用户 > 新建用户
func (s *OAuthService) resolveUser(ctx context.Context, identity *Identity) (*models.User, error) {
	provider := s.provider.Name()
	extra, _ := json.Marshal(identity)

	social, err := s.socialRepo.WithContext(ctx).GetByProviderUID(provider, identity.Subject)
	switch {
	case err == nil:
		if err := s.socialRepo.WithContext(ctx).UpdateExtraData(social.ID, string(extra)); err != nil {
			utils.LogIfDevf("[OAuth] Failed to update extra data: %v", err)
		}
		user, err := s.accountsRepo.WithContext(ctx).GetUserByID(social.UserID)
		if err != nil {
			return nil, err
		}
		s.updateDetails(ctx, user, identity)
		return user, nil
	case !errors.Is(err, accounts.ErrSocialAccountNotFound):
		return nil, err
	}

	var user *models.User
	if identity.Email != "" && identity.EmailVerified {
		user, err = s.accountsRepo.WithContext(ctx).GetUserByEmail(identity.Email)
		if err != nil && !errors.Is(err, accounts.ErrUserNotFound) {
			return nil, err
		}
	}

	if user == nil {
		user, err = s.createUser(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	err = s.socialRepo.WithContext(ctx).Associate(&models.SocialAccount{
		UserID:    user.ID,
		Provider:  provider,
		UID:       identity.Subject,
		ExtraData: string(extra),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to associate social account: %w", err)
	}
	return user, nil
}

// createUser 以邮箱前缀生成不重复的用户名，不设本地密码
func (s *OAuthService) createUser(ctx context.Context, identity *Identity) (*models.User, error) {
	base := usernameFromEmail(identity.Email)
	repo := s.accountsRepo.WithContext(ctx)

	username := base
	for i := 1; ; i++ {
		exists, err := repo.UserExists(username)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
		username = fmt.Sprintf("%s%d", base, i)
	}

	user := &models.User{
		Username: username,
		Email:    identity.Email,
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := repo.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// updateDetails 用户缺少邮箱时补全
func (s *OAuthService) updateDetails(ctx context.Context, user *models.User, identity *Identity) {
	if user.Email != "" || identity.Email == "" {
		return
	}
	if err := s.accountsRepo.WithContext(ctx).UpdateDetails(user.ID, identity.Email); err == nil {
		user.Email = identity.Email
	}
}

func usernameFromEmail(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}
	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || strings.ContainsRune("@.+_-", r) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < minUsernameLength {
		name = "user" + name
	}
	if len(name) > maxUsernameLength-10 {
		name = name[:maxUsernameLength-10]
	}
	return name
}
