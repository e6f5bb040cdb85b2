package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig WebDAV 配置结构
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
	RootPath string
	Timeout  time.Duration
}

// WebDAVStorage WebDAV 存储实现
type WebDAVStorage struct {
	client   *gowebdav.Client
	baseURL  string
	rootPath string
}

// NewWebDAVStorage 创建 WebDAV 存储提供者
func NewWebDAVStorage(cfg WebDAVConfig) (*WebDAVStorage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	rootPath := strings.Trim(cfg.RootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	s := &WebDAVStorage{
		client:   client,
		rootPath: rootPath,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if rootPath != "" {
		if err := s.run(ctx, func() error { return client.MkdirAll(rootPath, 0755) }); err != nil {
			return nil, fmt.Errorf("webdav connection test failed: %w", err)
		}
	}
	if err := s.Health(ctx); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}

	return s, nil
}

// run gowebdav 不支持 context，在 goroutine 中执行并等待取消
func (s *WebDAVStorage) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// fullPath 生成完整的 WebDAV 路径
func (s *WebDAVStorage) fullPath(storagePath string) string {
	storagePath = strings.TrimLeft(storagePath, "/")
	if s.rootPath != "" {
		return s.rootPath + "/" + storagePath
	}
	return "/" + storagePath
}

// SaveWithContext 保存文件到 WebDAV
func (s *WebDAVStorage) SaveWithContext(ctx context.Context, storagePath string, file io.Reader) error {
	if !IsValidStoragePath(storagePath) {
		return fmt.Errorf("%w: %s", ErrInvalidPath, storagePath)
	}
	fullPath := s.fullPath(storagePath)

	if err := s.run(ctx, func() error { return s.client.MkdirAll(path.Dir(fullPath), 0755) }); err != nil {
		return fmt.Errorf("failed to ensure parent directory for %s: %w", storagePath, err)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read file content: %w", err)
	}

	if err := s.run(ctx, func() error { return s.client.Write(fullPath, data, 0644) }); err != nil {
		return fmt.Errorf("failed to write file %s: %w", storagePath, err)
	}
	return nil
}

// GetWithContext 从 WebDAV 获取文件
func (s *WebDAVStorage) GetWithContext(ctx context.Context, storagePath string) (io.ReadSeekCloser, error) {
	if !IsValidStoragePath(storagePath) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, storagePath)
	}

	var data []byte
	err := s.run(ctx, func() error {
		var err error
		data, err = s.client.Read(s.fullPath(storagePath))
		return err
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", storagePath, err)
	}
	return nopSeekCloser{bytes.NewReader(data)}, nil
}

// DeleteWithContext 从 WebDAV 删除文件
func (s *WebDAVStorage) DeleteWithContext(ctx context.Context, storagePath string) error {
	exists, err := s.Exists(ctx, storagePath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, storagePath)
	}
	return s.run(ctx, func() error { return s.client.Remove(s.fullPath(storagePath)) })
}

// Exists 检查文件是否存在
func (s *WebDAVStorage) Exists(ctx context.Context, storagePath string) (bool, error) {
	if !IsValidStoragePath(storagePath) {
		return false, fmt.Errorf("%w: %s", ErrInvalidPath, storagePath)
	}

	var info os.FileInfo
	err := s.run(ctx, func() error {
		var err error
		info, err = s.client.Stat(s.fullPath(storagePath))
		return err
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// List 递归列出 prefix 下的文件
func (s *WebDAVStorage) List(ctx context.Context, prefix string) ([]string, error) {
	prefix = strings.Trim(prefix, "/")

	var keys []string
	var walk func(rel string) error
	walk = func(rel string) error {
		var entries []os.FileInfo
		err := s.run(ctx, func() error {
			var err error
			entries, err = s.client.ReadDir(s.fullPath(rel))
			return err
		})
		if err != nil {
			if gowebdav.IsErrNotFound(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			child := e.Name()
			if rel != "" {
				child = rel + "/" + e.Name()
			}
			if e.IsDir() {
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			keys = append(keys, child)
		}
		return nil
	}

	if err := walk(prefix); err != nil {
		return nil, err
	}
	return keys, nil
}

// Health 检查存储健康状态
func (s *WebDAVStorage) Health(ctx context.Context) error {
	return s.run(ctx, func() error {
		root := s.rootPath
		if root == "" {
			root = "/"
		}
		_, err := s.client.ReadDir(root)
		return err
	})
}

// Name 返回存储名称
func (s *WebDAVStorage) Name() string {
	return "webdav"
}
