package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/anoixa/image-predict/database/models"
	cryptopackage "github.com/anoixa/image-predict/utils/crypto"
	"gorm.io/gorm"
)

// DeviceRepository 设备仓库 - 封装所有设备相关的数据库操作
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository 创建新的设备仓库
func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// WithContext 返回带上下文的仓库
func (r *DeviceRepository) WithContext(ctx context.Context) *DeviceRepository {
	return &DeviceRepository{db: r.db.WithContext(ctx)}
}

// CreateLoginDevice 创建设备登录记录
func (r *DeviceRepository) CreateLoginDevice(userID uint, deviceID string, refreshToken string, expiry time.Time) error {
	device := &models.Device{
		UserID:           userID,
		RefreshTokenHash: cryptopackage.HashToken(refreshToken),
		Expiry:           expiry,
		DeviceID:         deviceID,
	}
	return r.db.Create(device).Error
}

// GetDeviceByRefreshTokenAndDeviceID 通过刷新令牌和设备ID获取未过期设备，不存在返回 nil
func (r *DeviceRepository) GetDeviceByRefreshTokenAndDeviceID(refreshToken string, deviceID string) (*models.Device, error) {
	var device models.Device
	err := r.db.Where("refresh_token_hash = ? AND device_id = ? AND expiry > ?",
		cryptopackage.HashToken(refreshToken), deviceID, time.Now()).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

// RotateRefreshToken 轮换刷新令牌
func (r *DeviceRepository) RotateRefreshToken(userID uint, deviceID, newRefreshToken string, expiry time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", deviceID).Delete(&models.Device{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Device{
			UserID:           userID,
			RefreshTokenHash: cryptopackage.HashToken(newRefreshToken),
			Expiry:           expiry,
			DeviceID:         deviceID,
		}).Error
	})
}

// DeleteDeviceByDeviceID 删除设备
func (r *DeviceRepository) DeleteDeviceByDeviceID(deviceID string) error {
	return r.db.Where("device_id = ?", deviceID).Delete(&models.Device{}).Error
}

// DeleteDevicesByUser 删除用户的所有设备
func (r *DeviceRepository) DeleteDevicesByUser(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&models.Device{}).Error
}

// CountDevicesByUser 统计用户的设备数量
func (r *DeviceRepository) CountDevicesByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Device{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
