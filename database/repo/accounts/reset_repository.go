package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/anoixa/image-predict/database/models"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
	"gorm.io/gorm"
)

// ErrResetTokenInvalid 令牌不存在、已使用或已过期
var ErrResetTokenInvalid = errors.New("password reset token is invalid or expired")

// ResetTokenRepository 找回密码令牌仓库
type ResetTokenRepository struct {
	db *gorm.DB
}

func NewResetTokenRepository(db *gorm.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// WithContext 返回带上下文的仓库
func (r *ResetTokenRepository) WithContext(ctx context.Context) *ResetTokenRepository {
	return &ResetTokenRepository{db: r.db.WithContext(ctx)}
}

// Create 保存新令牌并作废该用户之前的令牌
func (r *ResetTokenRepository) Create(userID uint, token string, expiresAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND used_at IS NULL", userID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    userID,
			TokenHash: cryptopackage.HashToken(token),
			ExpiresAt: expiresAt,
		}).Error
	})
}

// Check 只校验令牌是否可用，不消耗
func (r *ResetTokenRepository) Check(userID uint, token string, now time.Time) error {
	_, err := findUsable(r.db, userID, token, now)
	return err
}

// Consume 校验并标记令牌为已使用
func (r *ResetTokenRepository) Consume(userID uint, token string, now time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		record, err := findUsable(tx, userID, token, now)
		if err != nil {
			return err
		}
		return tx.Model(record).Update("used_at", now).Error
	})
}

func findUsable(db *gorm.DB, userID uint, token string, now time.Time) (*models.PasswordResetToken, error) {
	var record models.PasswordResetToken
	err := db.Where("user_id = ? AND token_hash = ?", userID, cryptopackage.HashToken(token)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}
	if !record.Usable(now) {
		return nil, ErrResetTokenInvalid
	}
	return &record, nil
}

// PurgeExpired 删除过期令牌
func (r *ResetTokenRepository) PurgeExpired(now time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", now).Delete(&models.PasswordResetToken{})
	return result.RowsAffected, result.Error
}
