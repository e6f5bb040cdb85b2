// Package dbtest 为单元测试提供迁移好的内存 SQLite 数据库
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anoixa/image-predict/database"
	"github.com/anoixa/image-predict/database/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open 每个测试独立的内存库
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, seq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.AllModels()...))
	return db
}

// CreateUser 插入一个测试用户
func CreateUser(t testing.TB, db *gorm.DB, username string, joined time.Time) *models.User {
	t.Helper()
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Role:      models.RoleUser,
		IsActive:  true,
		CreatedAt: joined,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePrediction 插入一条预测记录
func CreatePrediction(t testing.TB, db *gorm.DB, userID uint, class1 string, at time.Time) *models.Prediction {
	t.Helper()
	p := &models.Prediction{
		SubmittedByID: userID,
		ImageFile:     fmt.Sprintf("images/u%d_%d.jpg", userID, seq.Add(1)),
		Class1:        class1,
		Prob1:         70,
		Class2:        "dog",
		Prob2:         20,
		Class3:        "frog",
		Prob3:         6,
		Class4:        "ship",
		Prob4:         4,
		UploadedAt:    at,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
