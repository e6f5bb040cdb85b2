package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("storage object not found")

// ErrInvalidPath 存储路径不合法
var ErrInvalidPath = errors.New("invalid storage path")

// Provider 媒体存储提供者接口
type Provider interface {
	// SaveWithContext 保存文件到存储
	SaveWithContext(ctx context.Context, storagePath string, file io.Reader) error

	// GetWithContext 从存储获取文件，调用方负责关闭
	GetWithContext(ctx context.Context, storagePath string) (io.ReadSeekCloser, error)

	// DeleteWithContext 从存储删除文件，不存在时返回 ErrNotFound
	DeleteWithContext(ctx context.Context, storagePath string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, storagePath string) (bool, error)

	// List 列出 prefix 下所有文件的存储路径
	List(ctx context.Context, prefix string) ([]string, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}

// IsValidStoragePath 校验存储路径是否合法
func IsValidStoragePath(path string) bool {
	if path == "" || path[0] == '/' {
		return false
	}

	// 防止目录遍历
	for _, seg := range splitPath(path) {
		if seg == ".." || seg == "." || seg == "" {
			return false
		}
	}

	// 只允许安全字符
	for _, r := range path {
		if (r < 'a' || r > 'z') &&
			(r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') &&
			r != '-' && r != '_' && r != '.' && r != '/' {
			return false
		}
	}

	return true
}

func splitPath(p string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			parts = append(parts, p[start:i])
			start = i + 1
		}
	}
	return append(parts, p[start:])
}

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }
