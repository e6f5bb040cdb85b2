package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	Debug              bool          `mapstructure:"debug"`
	AllowedHosts       []string      `mapstructure:"allowed_hosts"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`

	// JWT 配置
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTAccessTokenTTL  time.Duration `mapstructure:"jwt_access_token_ttl"`
	JWTRefreshTokenTTL time.Duration `mapstructure:"jwt_refresh_token_ttl"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// 缓存提供者配置
	CacheType          string `mapstructure:"cache_type"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`

	// 存储配置
	StorageType       string `mapstructure:"storage_type"`
	MediaRoot         string `mapstructure:"media_root"`
	MinioEndpoint     string `mapstructure:"minio_endpoint"`
	MinioAccessKey    string `mapstructure:"minio_access_key"`
	MinioSecretKey    string `mapstructure:"minio_secret_key"`
	MinioBucket       string `mapstructure:"minio_bucket"`
	MinioUseSSL       bool   `mapstructure:"minio_use_ssl"`
	WebDAVURL         string `mapstructure:"webdav_url"`
	WebDAVUsername    string `mapstructure:"webdav_username"`
	WebDAVPassword    string `mapstructure:"webdav_password"`
	WebDAVRootPath    string `mapstructure:"webdav_root_path"`
	WebDAVTimeoutSecs int    `mapstructure:"webdav_timeout_seconds"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitAuthCount  int           `mapstructure:"rate_limit_auth_count"`
	RateLimitAuthWindow time.Duration `mapstructure:"rate_limit_auth_window"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// 上传与抓取配置
	UploadMaxSizeMB     int `mapstructure:"upload_max_size_mb"`
	ImageMaxDimension   int `mapstructure:"image_max_dimension"`
	ImageQuality        int `mapstructure:"image_quality"`
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`

	// 模型配置
	ModelPath                string `mapstructure:"model_path"`
	LabelsPath               string `mapstructure:"labels_path"`
	ModelThreads             int    `mapstructure:"model_threads"`
	MaxConcurrentPredictions int64  `mapstructure:"max_concurrent_predictions"`

	// Google OAuth
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleRedirectURL  string `mapstructure:"google_redirect_url"`

	// SMTP 配置
	SMTPHost         string        `mapstructure:"smtp_host"`
	SMTPPort         int           `mapstructure:"smtp_port"`
	SMTPUsername     string        `mapstructure:"smtp_username"`
	SMTPPassword     string        `mapstructure:"smtp_password"`
	SMTPFrom         string        `mapstructure:"smtp_from"`
	PasswordResetTTL time.Duration `mapstructure:"password_reset_ttl"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	if path := viper.GetString("config_file_path"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigFile(".env")
		viper.SetConfigType("env")
	}

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: config file not found, using defaults and environment variables")
	} else {
		fmt.Fprintf(os.Stderr, "Info: Loaded configuration from %s\n", viper.ConfigFileUsed())
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		_ = viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	// 环境变量中的 allowed_hosts 是逗号分隔字符串
	globalConfig.AllowedHosts = splitList(globalConfig.AllowedHosts)
	globalConfig.CORSOrigins = splitList(globalConfig.CORSOrigins)

	if globalConfig.ModelThreads <= 0 {
		globalConfig.ModelThreads = runtime.GOMAXPROCS(0)
	}
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8000)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "60s")
	viper.SetDefault("server_idle_timeout", "120s")
	viper.SetDefault("debug", false)
	viper.SetDefault("allowed_hosts", []string{"localhost", "127.0.0.1"})
	viper.SetDefault("cors_origins", []string{})

	// JWT
	viper.SetDefault("jwt_secret", "")
	viper.SetDefault("jwt_access_token_ttl", "15m")
	viper.SetDefault("jwt_refresh_token_ttl", "168h")

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "image-predict")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 50)
	viper.SetDefault("db_max_idle_conns", 10)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// 缓存提供者配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)

	// 存储
	viper.SetDefault("storage_type", "local")
	viper.SetDefault("media_root", "./media")
	viper.SetDefault("minio_bucket", "media")
	viper.SetDefault("minio_use_ssl", false)
	viper.SetDefault("webdav_root_path", "/media")
	viper.SetDefault("webdav_timeout_seconds", 30)

	// 限流配置默认值
	viper.SetDefault("rate_limit_api_rps", 30.0)
	viper.SetDefault("rate_limit_api_burst", 60)
	viper.SetDefault("rate_limit_auth_count", 5)
	viper.SetDefault("rate_limit_auth_window", "1h")
	viper.SetDefault("rate_limit_expire_time", "2h")

	// 上传配置默认值
	viper.SetDefault("upload_max_size_mb", 10)
	viper.SetDefault("image_max_dimension", 800)
	viper.SetDefault("image_quality", 85)
	viper.SetDefault("fetch_timeout_seconds", 5)

	// 模型
	viper.SetDefault("model_path", "./data/model.tflite")
	viper.SetDefault("labels_path", "")
	viper.SetDefault("model_threads", 0)
	viper.SetDefault("max_concurrent_predictions", 4)

	// OAuth
	viper.SetDefault("google_client_id", "")
	viper.SetDefault("google_client_secret", "")
	viper.SetDefault("google_redirect_url", "")

	// SMTP
	viper.SetDefault("smtp_host", "")
	viper.SetDefault("smtp_port", 587)
	viper.SetDefault("smtp_username", "")
	viper.SetDefault("smtp_password", "")
	viper.SetDefault("smtp_from", "")
	viper.SetDefault("password_reset_ttl", "1h")
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8000
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// BaseURL 返回基础 URL，用于生成重置链接
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return strings.TrimRight(c.ServerDomain, "/")
	}
	host := c.ServerHost
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ServerPort)
}

// UploadMaxBytes 上传大小上限（字节）
func (c *Config) UploadMaxBytes() int64 {
	if c.UploadMaxSizeMB <= 0 {
		return 10 << 20
	}
	return int64(c.UploadMaxSizeMB) << 20
}

// FetchTimeout 远程抓取超时
func (c *Config) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// GoogleOAuthEnabled 是否配置了 Google 登录
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SMTPEnabled 是否配置了邮件发送
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
