package accounts

import (
	"context"
	"errors"

	"github.com/anoixa/image-predict/database/models"
	"gorm.io/gorm"
)

// ErrSocialAccountNotFound 第三方账号未关联
var ErrSocialAccountNotFound = errors.New("social account not found")

// SocialRepository 第三方账号仓库
type SocialRepository struct {
	db *gorm.DB
}

func NewSocialRepository(db *gorm.DB) *SocialRepository {
	return &SocialRepository{db: db}
}

// WithContext 返回带上下文的仓库
func (r *SocialRepository) WithContext(ctx context.Context) *SocialRepository {
	return &SocialRepository{db: r.db.WithContext(ctx)}
}

// GetByProviderUID 通过提供者和 uid 查找关联
func (r *SocialRepository) GetByProviderUID(provider, uid string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	err := r.db.Where("provider = ? AND uid = ?", provider, uid).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSocialAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Associate 创建关联
func (r *SocialRepository) Associate(account *models.SocialAccount) error {
	return r.db.Create(account).Error
}

// UpdateExtraData 刷新提供者返回的资料
func (r *SocialRepository) UpdateExtraData(id uint, extra string) error {
	return r.db.Model(&models.SocialAccount{}).Where("id = ?", id).Update("extra_data", extra).Error
}
