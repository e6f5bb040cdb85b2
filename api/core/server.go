package core

import (
	"log"
	"net/http"
	"time"

	"github.com/anoixa/image-predict/api/middleware"
	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/internal/app"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouterDependencies 从容器组装路由依赖与限流器
func NewRouterDependencies(container *app.Container) *RouterDependencies {
	cfg := container.GetConfig()

	return &RouterDependencies{
		Config:        cfg,
		Database:      container.GetDatabaseProvider(),
		CacheProvider: container.GetCacheProvider(),
		Storage:       container.GetStorage(),
		Metrics:       container.GetMetrics(),
		ServerVersion: ServerVersion{Version: config.Version, CommitHash: config.CommitHash},

		AccountsRepo:      container.AccountsRepo,
		JWTService:        container.JWTService,
		LoginService:      container.LoginService,
		RegisterService:   container.RegisterService,
		ResetService:      container.ResetService,
		OAuthService:      container.OAuthService,
		PredictionService: container.PredictionService,
		ReportExporter:    container.ReportExporter,
		DashboardService:  container.DashboardService,

		LoginRateLimiter:  middleware.NewWindowRateLimiter(cfg.RateLimitAuthCount, cfg.RateLimitAuthWindow, cfg.RateLimitExpireTime),
		ResetRateLimiter:  middleware.NewWindowRateLimiter(cfg.RateLimitAuthCount, cfg.RateLimitAuthWindow, cfg.RateLimitExpireTime),
		APIRateLimiter:    middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime),
		PredictionLimiter: middleware.NewConcurrencyLimiter(maxPredictions(cfg.MaxConcurrentPredictions)),
	}
}

// Stop 停止限流器的清理协程
func (d *RouterDependencies) Stop() {
	for _, l := range []*middleware.IPRateLimiter{d.LoginRateLimiter, d.ResetRateLimiter, d.APIRateLimiter} {
		if l != nil {
			l.Stop()
		}
	}
}

func maxPredictions(n int64) int64 {
	if n <= 0 {
		return 1
	}
	return n
}

// NewEngine 创建带全局中间件的 gin 引擎并注册路由
func NewEngine(deps *RouterDependencies) *gin.Engine {
	cfg := deps.Config
	router := gin.New()

	// 仅在 debug 时启用 gin 日志
	if cfg.Debug {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 只信任直连地址，限流不受 X-Forwarded-For 伪造影响
	if err := router.SetTrustedProxies(nil); err != nil {
		log.Printf("[Server] Failed to set trusted proxies: %v", err)
	}

	// 限制上传文件大小
	router.MaxMultipartMemory = cfg.UploadMaxBytes()

	router.Use(middleware.AllowedHosts(cfg.AllowedHosts))
	router.Use(middleware.Metrics(deps.Metrics))

	RegisterRoutes(router, deps)
	return router
}

// StartServer 创建 http.Server，返回的 cleanup 在关闭后调用
func StartServer(container *app.Container) (*http.Server, func()) {
	cfg := container.GetConfig()
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := NewRouterDependencies(container)
	router := NewEngine(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, deps.Stop
}
