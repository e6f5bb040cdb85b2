package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/anoixa/image-predict/config"
)

// NewProvider 按 storage_type 创建媒体存储
func NewProvider(cfg *config.Config) (Provider, error) {
	log.Printf("Initializing storage, type: %s", cfg.StorageType)

	switch cfg.StorageType {
	case "", "local":
		return NewLocalStorage(cfg.MediaRoot)
	case "minio":
		return NewMinioStorage(MinioConfig{
			Endpoint:        cfg.MinioEndpoint,
			AccessKeyID:     cfg.MinioAccessKey,
			SecretAccessKey: cfg.MinioSecretKey,
			BucketName:      cfg.MinioBucket,
			UseSSL:          cfg.MinioUseSSL,
		})
	case "webdav":
		return NewWebDAVStorage(WebDAVConfig{
			URL:      cfg.WebDAVURL,
			Username: cfg.WebDAVUsername,
			Password: cfg.WebDAVPassword,
			RootPath: cfg.WebDAVRootPath,
			Timeout:  time.Duration(cfg.WebDAVTimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
