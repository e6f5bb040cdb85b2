package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/image-predict/api/core"
	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/internal/app"
	"github.com/davidbyttow/govips/v2/vips"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	config.InitConfig()
	cfg := config.Get()

	if len(cfg.JWTSecret) < 32 {
		log.Fatal("jwt_secret must be at least 32 characters")
	}

	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(nil)
	defer vips.Shutdown()

	container := app.NewContainer(cfg)

	if err := container.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	InitDatabase(container)

	if err := container.InitServices(); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// 启动gin
	server, cleanup := core.StartServer(container)
	go func() {
		log.Printf("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if cleanup != nil {
		cleanup()
		log.Println("Cleanup tasks finished.")
	}

	// 关闭 DI 容器
	if err := container.Close(); err != nil {
		log.Printf("Error closing container: %v", err)
	}

	log.Println("Server exited successfully")
}

// InitDatabase 自动迁移并确保存在管理员
func InitDatabase(container *app.Container) {
	factory := container.GetDatabaseFactory()
	log.Printf("Initializing database, database type: %s", factory.GetProvider().Name())

	// 自动DDL
	if err := factory.AutoMigrate(); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 没有管理员时创建默认管理员
	password, err := container.AccountsRepo.CreateDefaultAdminUser()
	if err != nil {
		log.Printf("Failed to create default admin user: %v", err)
	} else if password != "" {
		log.Printf("Default admin user created. username: admin, password: %s", password)
		log.Println("Please change the password after first login")
	}

	log.Println("Database initialized successfully")
}
