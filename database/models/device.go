package models

import (
	"time"
)

// Device 登录设备，每个设备持有一个刷新令牌
type Device struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	UserID           uint      `gorm:"index;not null"`
	User             User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	RefreshTokenHash string    `gorm:"uniqueIndex;size:64;not null"`
	DeviceID         string    `gorm:"uniqueIndex;size:64;not null"`
	Expiry           time.Time `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
