package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
)

// RegisterInput 注册表单
type RegisterInput struct {
	Username        string `json:"username" binding:"required"`
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

// RegisterService 注册服务
type RegisterService struct {
	accountsRepo *accounts.Repository
	loginService *LoginService
}

// NewRegisterService 创建注册服务
func NewRegisterService(accountsRepo *accounts.Repository, loginService *LoginService) *RegisterService {
	return &RegisterService{accountsRepo: accountsRepo, loginService: loginService}
}

// Register 校验表单、创建普通用户并直接登录
func (s *RegisterService) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if in.Password != in.PasswordConfirm {
		return nil, &ValidationError{Field: "password_confirm", Msg: "The two password fields didn't match."}
	}
	if err := ValidatePassword(in.Password, username, email); err != nil {
		return nil, err
	}

	hashed, err := cryptopackage.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
		Role:     models.RoleUser,
		IsActive: true,
	}
	if err := s.accountsRepo.WithContext(ctx).CreateUser(user); err != nil {
		if errors.Is(err, accounts.ErrUsernameTaken) {
			return nil, &ValidationError{Field: "username", Msg: "A user with that username already exists."}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.loginService.IssueSession(user)
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Msg: "Enter a valid email address."}
	}
	return nil
}
