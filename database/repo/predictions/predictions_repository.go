package predictions

import (
	"context"
	"errors"

	"github.com/anoixa/image-predict/database/models"
	"gorm.io/gorm"
)

// ErrPredictionNotFound 记录不存在或不属于该用户
var ErrPredictionNotFound = errors.New("prediction not found")

// Repository 预测记录仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建预测记录仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create 保存预测结果
func (r *Repository) Create(ctx context.Context, prediction *models.Prediction) error {
	return r.db.WithContext(ctx).Create(prediction).Error
}

// ListByUser 用户全部记录，按上传时间倒序
func (r *Repository) ListByUser(ctx context.Context, userID uint) ([]*models.Prediction, error) {
	var list []*models.Prediction
	err := r.db.WithContext(ctx).
		Where("submitted_by_id = ?", userID).
		Order("uploaded_at desc").
		Order("id desc").
		Find(&list).Error
	return list, err
}

// GetByIDAndUser 按 ID 获取，且必须属于该用户
func (r *Repository) GetByIDAndUser(ctx context.Context, id, userID uint) (*models.Prediction, error) {
	var prediction models.Prediction
	err := r.db.WithContext(ctx).
		Where("id = ? AND submitted_by_id = ?", id, userID).
		First(&prediction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return &prediction, nil
}

// DeleteByIDAndUser 硬删除
func (r *Repository) DeleteByIDAndUser(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND submitted_by_id = ?", id, userID).
		Delete(&models.Prediction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPredictionNotFound
	}
	return nil
}

// ImageFileReferenced 存储键是否仍被某条记录引用
func (r *Repository) ImageFileReferenced(ctx context.Context, imageFile string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Prediction{}).
		Where("image_file = ?", imageFile).
		Count(&count).Error
	return count > 0, err
}

// ListImageFiles 全部被引用的存储键
func (r *Repository) ListImageFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := r.db.WithContext(ctx).Model(&models.Prediction{}).
		Distinct().
		Pluck("image_file", &files).Error
	return files, err
}

// DeleteByImageFiles 删除引用这些存储键的记录
func (r *Repository) DeleteByImageFiles(ctx context.Context, files []string) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("image_file IN ?", files).
		Delete(&models.Prediction{})
	return result.RowsAffected, result.Error
}
