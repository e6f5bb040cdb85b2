package models

import (
	"time"
)

// 用户角色
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string     `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email     string     `gorm:"index;size:254" json:"email"`
	Password  string     `json:"-"`
	Role      string     `gorm:"size:16;default:user;not null" json:"role"`
	IsActive  bool       `gorm:"default:true;not null" json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `gorm:"index" json:"date_joined"`
	UpdatedAt time.Time  `json:"-"`
}

// IsAdmin 是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasUsablePassword 仅通过 OAuth 创建的账号没有本地密码
func (u *User) HasUsablePassword() bool {
	return u.Password != ""
}
