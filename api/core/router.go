package core

import (
	"time"

	"github.com/anoixa/image-predict/api"
	"github.com/anoixa/image-predict/api/common"
	"github.com/anoixa/image-predict/api/handler/dashboard"
	"github.com/anoixa/image-predict/api/handler/media"
	"github.com/anoixa/image-predict/api/handler/predictions"
	"github.com/anoixa/image-predict/api/middleware"
	"github.com/anoixa/image-predict/cache"
	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/database"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/internal/auth"
	dashboardSvc "github.com/anoixa/image-predict/internal/dashboard"
	"github.com/anoixa/image-predict/internal/metrics"
	"github.com/anoixa/image-predict/internal/prediction"
	"github.com/anoixa/image-predict/internal/report"
	"github.com/anoixa/image-predict/storage"
	"github.com/gin-gonic/gin"
)

// 等待推理名额的最长时间
const predictionQueueTimeout = 30 * time.Second

// ServerVersion 版本信息
type ServerVersion struct {
	Version    string
	CommitHash string
}

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Config        *config.Config
	Database      database.Provider
	CacheProvider cache.Provider
	Storage       storage.Provider
	Metrics       *metrics.Metrics
	ServerVersion ServerVersion

	AccountsRepo      *accounts.Repository
	JWTService        *auth.JWTService
	LoginService      *auth.LoginService
	RegisterService   *auth.RegisterService
	ResetService      *auth.ResetService
	OAuthService      *auth.OAuthService
	PredictionService *prediction.Service
	ReportExporter    *report.Exporter
	DashboardService  *dashboardSvc.Service

	LoginRateLimiter  *middleware.IPRateLimiter
	ResetRateLimiter  *middleware.IPRateLimiter
	APIRateLimiter    *middleware.IPRateLimiter
	PredictionLimiter *middleware.ConcurrencyLimiter
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	// 基础路由
	registerBasicRoutes(router, deps)

	// 媒体文件
	mediaHandler := media.NewHandler(deps.Storage)
	router.GET("/media/*path", mediaHandler.Serve)

	// API 路由
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.Database, deps.CacheProvider, deps.Storage)
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": deps.ServerVersion.Version,
			"commit":  deps.ServerVersion.CommitHash,
		})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
}

// registerAPIRoutes 注册 API 路由
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies) {
	baseURL := ""
	if deps.Config != nil {
		baseURL = deps.Config.ServerDomain
	}

	jwtAuth := middleware.JWTAuth(deps.JWTService)
	loginHandler := api.NewLoginHandler(deps.LoginService)
	accountHandler := api.NewAccountHandler(deps.AccountsRepo, deps.RegisterService, deps.ResetService)
	oauthHandler := api.NewOAuthHandler(deps.OAuthService)
	predictionHandler := predictions.NewHandler(deps.PredictionService, deps.ReportExporter, deps.AccountsRepo, baseURL)
	dashboardHandler := dashboard.NewHandler(deps.DashboardService)
	submitLimit := deps.PredictionLimiter.Queue(predictionQueueTimeout)

	// 找回密码邮件中的链接
	router.GET("/reset/:uid/:token", accountHandler.PasswordResetLink)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) { // 所有API禁止缓存
		context.Header("Cache-Control", "no-store")
		context.Next()
	})
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/register", accountHandler.Register)                                                // POST /api/auth/register
			authGroup.POST("/login", deps.LoginRateLimiter.Middleware(), loginHandler.LoginHandlerFunc)         // POST /api/auth/login
			authGroup.POST("/refresh", loginHandler.RefreshTokenHandlerFunc)                                    // POST /api/auth/refresh
			authGroup.POST("/logout", jwtAuth, loginHandler.LogoutHandlerFunc)                                  // POST /api/auth/logout
			authGroup.POST("/password/reset", deps.ResetRateLimiter.Middleware(), accountHandler.PasswordReset) // POST /api/auth/password/reset
			authGroup.POST("/password/reset/confirm", accountHandler.PasswordResetConfirm)                      // POST /api/auth/password/reset/confirm
			authGroup.GET("/oauth/google/login", oauthHandler.Login)                                            // GET /api/auth/oauth/google/login
			authGroup.GET("/oauth/google/callback", oauthHandler.Callback)                                      // GET /api/auth/oauth/google/callback
		}

		v1 := apiGroup.Group("/v1")
		v1.Use(deps.APIRateLimiter.Middleware())
		v1.Use(jwtAuth)
		{
			v1.GET("/account/me", accountHandler.Me) // GET /api/v1/account/me

			predictionsGroup := v1.Group("/predictions")
			{
				predictionsGroup.POST("", submitLimit, predictionHandler.Submit) // POST /api/v1/predictions
				predictionsGroup.GET("", predictionHandler.List)                 // GET /api/v1/predictions
				predictionsGroup.GET("/export", predictionHandler.Export)        // GET /api/v1/predictions/export
				predictionsGroup.DELETE("/:id", predictionHandler.Delete)        // DELETE /api/v1/predictions/{id}
			}

			dashboardHandler.SetupRoutes(v1, middleware.RequireRole(models.RoleAdmin))
		}
	}
}
