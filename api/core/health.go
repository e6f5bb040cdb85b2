package core

import (
	"context"
	"net/http"
	"time"

	"github.com/anoixa/image-predict/cache"
	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/database"
	"github.com/anoixa/image-predict/storage"
	"github.com/gin-gonic/gin"
)

const (
	healthCheckTimeout = 3 * time.Second
	healthProbeKey     = "health:probe"
)

var startTime = time.Now()

// HealthHandler 健康检查
type HealthHandler struct {
	db      database.Pinger
	cache   cache.Provider
	storage storage.Provider
}

// NewHealthHandler 创建健康检查处理器，任一依赖可为 nil
func NewHealthHandler(db database.Pinger, cacheProvider cache.Provider, store storage.Provider) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheProvider, storage: store}
}

// Handle GET /health
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{
		"database": checkDatabaseHealth(h.db),
		"cache":    checkCacheHealth(ctx, h.cache),
		"storage":  checkStorageHealth(ctx, h.storage),
	}

	status := "ok"
	httpStatus := http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.Version,
		"checks":  checks,
	})
}

func checkDatabaseHealth(provider database.Pinger) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Ping(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(ctx context.Context, provider cache.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if _, err := provider.Exists(ctx, healthProbeKey); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkStorageHealth(ctx context.Context, provider storage.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
