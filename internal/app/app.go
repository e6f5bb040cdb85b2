package app

import (
	"fmt"
	"log"
	"time"

	"github.com/anoixa/image-predict/cache"
	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/database"
	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/database/repo/dashboard"
	"github.com/anoixa/image-predict/database/repo/predictions"
	"github.com/anoixa/image-predict/internal/auth"
	"github.com/anoixa/image-predict/internal/classifier"
	dashboardSvc "github.com/anoixa/image-predict/internal/dashboard"
	"github.com/anoixa/image-predict/internal/ingest"
	"github.com/anoixa/image-predict/internal/mail"
	"github.com/anoixa/image-predict/internal/metrics"
	"github.com/anoixa/image-predict/internal/prediction"
	"github.com/anoixa/image-predict/internal/report"
	"github.com/anoixa/image-predict/storage"
	"github.com/anoixa/image-predict/utils"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config          *config.Config
	databaseFactory *database.Factory
	cacheProvider   cache.Provider
	storageProvider storage.Provider
	classifier      classifier.Classifier
	metrics         *metrics.Metrics

	AccountsRepo    *accounts.Repository
	DevicesRepo     *accounts.DeviceRepository
	SocialRepo      *accounts.SocialRepository
	ResetRepo       *accounts.ResetTokenRepository
	PredictionsRepo *predictions.Repository
	DashboardRepo   *dashboard.Repository

	JWTService        *auth.JWTService
	LoginService      *auth.LoginService
	RegisterService   *auth.RegisterService
	ResetService      *auth.ResetService
	OAuthService      *auth.OAuthService
	PredictionService *prediction.Service
	ReportExporter    *report.Exporter
	DashboardService  *dashboardSvc.Service
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 初始化数据库与全部服务
func (c *Container) Init() error {
	if err := c.InitDatabase(); err != nil {
		return err
	}
	return c.InitServices()
}

// InitDatabase 仅初始化数据库和仓库，供 migrate / user 等命令使用
func (c *Container) InitDatabase() error {
	utils.LogIfDev("Initializing DI container...")

	factory, err := database.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database factory: %w", err)
	}
	c.databaseFactory = factory

	c.initRepositories()
	return nil
}

// InitStorage 初始化媒体存储
func (c *Container) InitStorage() error {
	if c.storageProvider != nil {
		return nil
	}
	provider, err := storage.NewProvider(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storageProvider = provider
	return nil
}

// InitServices 初始化缓存、存储、模型和业务服务
func (c *Container) InitServices() error {
	cfg := c.config

	cacheProvider, err := cache.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cacheProvider = cacheProvider
	log.Printf("[Container] Cache provider: %s", cacheProvider.Name())

	if err := c.InitStorage(); err != nil {
		return err
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	c.metrics = m

	if err := c.initClassifier(); err != nil {
		return err
	}

	if err := c.initAuth(); err != nil {
		return err
	}

	ingestSvc := ingest.NewService(c.storageProvider, ingest.NewVipsCompressor(cfg.ImageMaxDimension, cfg.ImageQuality), ingest.Options{
		MaxBytes:     cfg.UploadMaxBytes(),
		FetchTimeout: cfg.FetchTimeout(),
	})
	c.PredictionService = prediction.NewService(c.PredictionsRepo, ingestSvc, c.classifier, c.storageProvider, c.metrics)
	c.ReportExporter = report.NewExporter(c.storageProvider)
	c.DashboardService = dashboardSvc.NewService(c.DashboardRepo)

	utils.LogIfDev("DI container initialized successfully")
	return nil
}

func (c *Container) initClassifier() error {
	labels, err := classifier.LoadLabels(c.config.LabelsPath)
	if err != nil {
		return fmt.Errorf("failed to load labels: %w", err)
	}

	start := time.Now()
	clf, err := classifier.NewTFLiteClassifier(c.config.ModelPath, labels, c.config.ModelThreads)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	c.classifier = clf
	log.Printf("[Container] Model %s loaded in %v (%d classes)", c.config.ModelPath, time.Since(start).Round(time.Millisecond), len(labels))
	return nil
}

func (c *Container) initAuth() error {
	cfg := c.config

	jwtService, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAccessTokenTTL, cfg.JWTRefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT: %w", err)
	}
	c.JWTService = jwtService
	c.LoginService = auth.NewLoginService(c.AccountsRepo, c.DevicesRepo, jwtService)
	c.RegisterService = auth.NewRegisterService(c.AccountsRepo, c.LoginService)

	var mailer mail.Sender = mail.LogSender{}
	if cfg.SMTPEnabled() {
		mailer = mail.NewShoutrrrSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		log.Println("[Container] SMTP not configured, reset mails will be logged")
	}
	c.ResetService = auth.NewResetService(c.AccountsRepo, c.ResetRepo, c.LoginService, mailer, cfg.BaseURL(), cfg.PasswordResetTTL)

	if cfg.GoogleOAuthEnabled() {
		provider := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		c.OAuthService = auth.NewOAuthService(provider, c.cacheProvider, c.AccountsRepo, c.SocialRepo, c.LoginService)
		log.Println("[Container] Google OAuth enabled")
	}
	return nil
}

// initRepositories 初始化所有仓库
func (c *Container) initRepositories() {
	db := c.databaseFactory.GetProvider().DB()
	c.AccountsRepo = accounts.NewRepository(db)
	c.DevicesRepo = accounts.NewDeviceRepository(db)
	c.SocialRepo = accounts.NewSocialRepository(db)
	c.ResetRepo = accounts.NewResetTokenRepository(db)
	c.PredictionsRepo = predictions.NewRepository(db)
	c.DashboardRepo = dashboard.NewRepository(db)
	utils.LogIfDev("Repositories initialized")
}

// GetDatabaseFactory 获取数据库工厂
func (c *Container) GetDatabaseFactory() *database.Factory {
	return c.databaseFactory
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	if c.databaseFactory == nil {
		return nil
	}
	return c.databaseFactory.GetProvider()
}

// GetCacheProvider 获取缓存提供者
func (c *Container) GetCacheProvider() cache.Provider {
	return c.cacheProvider
}

// GetStorage 获取媒体存储
func (c *Container) GetStorage() storage.Provider {
	return c.storageProvider
}

// GetMetrics 获取指标
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// Close 关闭所有服务
func (c *Container) Close() error {
	utils.LogIfDev("Closing DI container...")

	if c.classifier != nil {
		if err := c.classifier.Close(); err != nil {
			log.Printf("[Container] Error closing classifier: %v", err)
		}
	}

	if c.cacheProvider != nil {
		if err := c.cacheProvider.Close(); err != nil {
			log.Printf("[Container] Error closing cache: %v", err)
		}
	}

	if c.databaseFactory != nil {
		if err := c.databaseFactory.Close(); err != nil {
			utils.LogIfDevf("Error closing database factory: %v", err)
		}
	}

	utils.LogIfDev("DI container closed")
	return nil
}
