package database

import (
	"context"

	"gorm.io/gorm"
)

// Pinger 健康检查只依赖连通性
type Pinger interface {
	Ping() error
}

// Provider 对 *gorm.DB 的薄包装，供仓库与命令行共用
type Provider interface {
	Pinger
	DB() *gorm.DB
	WithContext(ctx context.Context) *gorm.DB
	AutoMigrate(models ...interface{}) error
	Close() error
	// Name 驱动名：sqlite 或 postgres
	Name() string
}
