package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/utils"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
	"gorm.io/gorm"
)

// ErrUserNotFound 用户不存在错误
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameTaken 用户名已存在
var ErrUsernameTaken = errors.New("username already exists")

// Repository 账户仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的账户仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 返回底层数据库连接
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: r.db.WithContext(ctx)}
}

// CreateDefaultAdminUser 没有任何管理员时创建 admin 账号，返回随机密码
func (r *Repository) CreateDefaultAdminUser() (string, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to check admin user existence: %w", err)
	}
	if count > 0 {
		return "", nil
	}

	randomPassword, err := utils.GenerateRandomToken(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}

	hashedPassword, err := cryptopackage.GenerateFromPassword(randomPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash default password: %w", err)
	}

	user := &models.User{
		Username: "admin",
		Password: hashedPassword,
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := r.CreateUser(user); err != nil {
		return "", fmt.Errorf("failed to create default admin user: %w", err)
	}

	return randomPassword, nil
}

// GetUserByUsername 通过用户名获取用户
func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail 通过邮箱获取用户（大小写不敏感）
func (r *Repository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(email)).Order("id asc").First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID 通过ID获取用户
func (r *Repository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser 创建用户
func (r *Repository) CreateUser(user *models.User) error {
	exists, err := r.UserExists(user.Username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUsernameTaken
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	return r.db.Create(user).Error
}

// UpdatePassword 更新密码哈希
func (r *Repository) UpdatePassword(userID uint, hashedPassword string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("password", hashedPassword).Error
}

// UpdateDetails 更新邮箱
func (r *Repository) UpdateDetails(userID uint, email string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("email", email).Error
}

// TouchLastLogin 记录最后登录时间
func (r *Repository) TouchLastLogin(userID uint, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("last_login", at).Error
}

// SetRole 修改用户角色
func (r *Repository) SetRole(userID uint, role string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("role", role).Error
}

// UserExists 检查用户是否存在
func (r *Repository) UserExists(username string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
