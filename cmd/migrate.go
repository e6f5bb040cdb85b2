package cmd

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/database"
	"github.com/anoixa/image-predict/database/models"
	"github.com/anoixa/image-predict/internal/app"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()

		container := app.NewContainer(config.Get())
		if err := container.InitDatabase(); err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer container.Close()

		if err := container.GetDatabaseFactory().AutoMigrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

// migrateCopyCmd 在两个数据库之间复制数据
var migrateCopyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy all data from one database to another",
	Long: `Copy users, sessions, social accounts, reset tokens and predictions
from a source database to a target database (e.g., SQLite to PostgreSQL).

Examples:
  image-predict migrate copy --from-sqlite ./data/image-predict.db --to-postgres "host=localhost user=postgres password=secret dbname=predict port=5432"
  image-predict migrate copy --from-sqlite ./data.db --to-postgres "..." --on-conflict=overwrite`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := copyOptions{}
		opts.fromType, _ = cmd.Flags().GetString("from-type")
		opts.toType, _ = cmd.Flags().GetString("to-type")
		opts.fromDSN, _ = cmd.Flags().GetString("from-dsn")
		opts.toDSN, _ = cmd.Flags().GetString("to-dsn")
		opts.batchSize, _ = cmd.Flags().GetInt("batch-size")
		opts.onConflict, _ = cmd.Flags().GetString("on-conflict")
		skipConfirm, _ := cmd.Flags().GetBool("yes")

		if fromSQLite, _ := cmd.Flags().GetString("from-sqlite"); fromSQLite != "" {
			opts.fromType, opts.fromDSN = "sqlite", fromSQLite
		}
		if toPostgres, _ := cmd.Flags().GetString("to-postgres"); toPostgres != "" {
			opts.toType, opts.toDSN = "postgres", toPostgres
		}

		if err := opts.validate(); err != nil {
			log.Fatalf("Invalid arguments: %v", err)
		}
		if !skipConfirm && !confirm("This will copy all data into the target database.") {
			fmt.Println("Migration cancelled.")
			return
		}

		if err := runCopy(context.Background(), opts); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateCopyCmd)

	migrateCopyCmd.Flags().String("from-type", "", "Source database type (sqlite, postgres)")
	migrateCopyCmd.Flags().String("to-type", "", "Target database type (sqlite, postgres)")
	migrateCopyCmd.Flags().String("from-dsn", "", "Source database DSN/connection string")
	migrateCopyCmd.Flags().String("to-dsn", "", "Target database DSN/connection string")
	migrateCopyCmd.Flags().String("from-sqlite", "", "Source SQLite file path (shortcut)")
	migrateCopyCmd.Flags().String("to-postgres", "", "Target PostgreSQL connection string (shortcut)")
	migrateCopyCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	migrateCopyCmd.Flags().Int("batch-size", 200, "Rows per batch")
	migrateCopyCmd.Flags().String("on-conflict", "skip", "Conflict resolution strategy: skip, overwrite")
}

type copyOptions struct {
	fromType, fromDSN string
	toType, toDSN     string
	batchSize         int
	onConflict        string
}

func (o *copyOptions) validate() error {
	if o.onConflict != "skip" && o.onConflict != "overwrite" {
		return fmt.Errorf("invalid on-conflict strategy: %s (must be skip or overwrite)", o.onConflict)
	}
	if o.fromType == "" || o.toType == "" {
		return fmt.Errorf("both --from-type and --to-type are required")
	}
	if o.fromDSN == "" || o.toDSN == "" {
		return fmt.Errorf("both --from-dsn and --to-dsn (or shortcuts) are required")
	}
	if o.fromType == o.toType && o.fromDSN == o.toDSN {
		return fmt.Errorf("source and target databases are the same")
	}
	if o.batchSize <= 0 {
		o.batchSize = 200
	}
	return nil
}

// runCopy 按外键顺序逐表复制
func runCopy(ctx context.Context, opts copyOptions) error {
	log.Printf("Copying from %s (%s) to %s (%s), on-conflict=%s",
		opts.fromType, maskDSN(opts.fromDSN), opts.toType, maskDSN(opts.toDSN), opts.onConflict)

	source, err := openDatabase(opts.fromType, opts.fromDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer closeDatabase(source)

	target, err := openDatabase(opts.toType, opts.toDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	defer closeDatabase(target)

	if err := target.AutoMigrate(database.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate target schema: %w", err)
	}

	onConflict := clause.OnConflict{DoNothing: true}
	if opts.onConflict == "overwrite" {
		onConflict = clause.OnConflict{UpdateAll: true}
	}

	steps := []struct {
		table string
		run   func() (int, error)
	}{
		{"users", func() (int, error) { return copyTable[models.User](ctx, source, target, opts.batchSize, onConflict) }},
		{"devices", func() (int, error) { return copyTable[models.Device](ctx, source, target, opts.batchSize, onConflict) }},
		{"social_accounts", func() (int, error) {
			return copyTable[models.SocialAccount](ctx, source, target, opts.batchSize, onConflict)
		}},
		{"password_reset_tokens", func() (int, error) {
			return copyTable[models.PasswordResetToken](ctx, source, target, opts.batchSize, onConflict)
		}},
		{"predictions", func() (int, error) {
			return copyTable[models.Prediction](ctx, source, target, opts.batchSize, onConflict)
		}},
	}

	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			return fmt.Errorf("copy %s: %w", step.table, err)
		}
		log.Printf("[Migrate] %-22s %d rows", step.table, n)
	}

	// is_active 带 default 标签，false 在插入时会被数据库默认值覆盖
	var inactive []uint
	if err := source.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", false).Pluck("id", &inactive).Error; err != nil {
		return fmt.Errorf("load inactive users: %w", err)
	}
	if len(inactive) > 0 {
		if err := target.WithContext(ctx).Model(&models.User{}).Where("id IN ?", inactive).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("restore inactive users: %w", err)
		}
	}

	if target.Dialector.Name() == "postgres" {
		if err := resetSequences(ctx, target); err != nil {
			return err
		}
	}

	log.Println("Migration completed successfully!")
	return nil
}

// copyTable 分批读取源表写入目标表
func copyTable[T any](ctx context.Context, source, target *gorm.DB, batchSize int, onConflict clause.OnConflict) (int, error) {
	var batch []T
	total := 0

	result := source.WithContext(ctx).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		if err := target.WithContext(ctx).Omit(clause.Associations).Clauses(onConflict).Create(&batch).Error; err != nil {
			return err
		}
		total += len(batch)
		return nil
	})
	return total, result.Error
}

// resetSequences 显式写入主键后需要推进 PostgreSQL 序列
func resetSequences(ctx context.Context, db *gorm.DB) error {
	for _, model := range database.AllModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return err
		}
		table := stmt.Schema.Table
		sql := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)", table, table)
		if err := db.WithContext(ctx).Exec(sql).Error; err != nil {
			return fmt.Errorf("reset sequence for %s: %w", table, err)
		}
	}
	return nil
}

// openDatabase 打开数据库连接
func openDatabase(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// maskDSN 隐藏连接串中的密码
func maskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			return u.String()
		}
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}

// confirm 交互确认
func confirm(prompt string) bool {
	fmt.Println("\nWarning: " + prompt)
	fmt.Print("Do you want to continue? [y/N]: ")
	var response string
	_, _ = fmt.Scanln(&response)
	return response == "y" || response == "Y"
}
