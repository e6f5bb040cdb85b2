package models

import "time"

// ProviderGoogle Google OAuth2 提供者标识
const ProviderGoogle = "google-oauth2"

// SocialAccount 第三方登录关联
type SocialAccount struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    uint   `gorm:"index;not null"`
	User      User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Provider  string `gorm:"uniqueIndex:idx_provider_uid;size:32;not null"`
	UID       string `gorm:"uniqueIndex:idx_provider_uid;size:255;not null"`
	ExtraData string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
