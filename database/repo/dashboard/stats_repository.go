package dashboard

import (
	"context"
	"time"

	"github.com/anoixa/image-predict/database/models"
	"gorm.io/gorm"
)

// Repository Dashboard 统计仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的 Dashboard 统计仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserPredictionCount 用户及其预测数量
type UserPredictionCount struct {
	UserID          uint   `json:"user_id"`
	Username        string `json:"username"`
	PredictionCount int64  `json:"prediction_count"`
}

// CountUsers 用户总数
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountPredictions 预测总数
func (r *Repository) CountPredictions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Prediction{}).Count(&count).Error
	return count, err
}

// CountActiveUsers 至少提交过一次预测的用户数
func (r *Repository) CountActiveUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Prediction{}).
		Distinct("submitted_by_id").
		Count(&count).Error
	return count, err
}

// MostPredictedClass 出现次数最多的 top-1 类别，没有数据时返回空字符串
func (r *Repository) MostPredictedClass(ctx context.Context) (string, error) {
	var rows []struct {
		Class1 string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Prediction{}).
		Select("class_1 AS class1, COUNT(*) AS total").
		Group("class_1").
		Order("total DESC").
		Order("class_1 ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return "", err
	}
	return rows[0].Class1, nil
}

// RecentPredictions 最近 n 条预测，带提交用户
func (r *Repository) RecentPredictions(ctx context.Context, limit int) ([]*models.Prediction, error) {
	var list []*models.Prediction
	err := r.db.WithContext(ctx).
		Preload("SubmittedBy").
		Order("uploaded_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// PredictionTimesSince since 之后所有预测的上传时间，按日分桶在服务层完成
func (r *Repository) PredictionTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var times []time.Time
	err := r.db.WithContext(ctx).Model(&models.Prediction{}).
		Where("uploaded_at >= ?", since).
		Pluck("uploaded_at", &times).Error
	return times, err
}

// UsersJoinedSince since 之后注册的用户
func (r *Repository) UsersJoinedSince(ctx context.Context, since time.Time) ([]*models.User, error) {
	var users []*models.User
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Find(&users).Error
	return users, err
}

// TopUsers 按预测数量排名前 n 的用户，只含有预测的用户
func (r *Repository) TopUsers(ctx context.Context, limit int) ([]UserPredictionCount, error) {
	var rows []UserPredictionCount
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("users.id AS user_id, users.username AS username, COUNT(predictions.id) AS prediction_count").
		Joins("JOIN predictions ON predictions.submitted_by_id = users.id").
		Group("users.id, users.username").
		Order("prediction_count DESC").
		Order("users.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
