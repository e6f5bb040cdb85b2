package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/anoixa/image-predict/config"
	"github.com/anoixa/image-predict/internal/app"
	"github.com/anoixa/image-predict/internal/maintenance"
	"github.com/spf13/cobra"
)

// cleanCmd 清理孤儿媒体文件与过期令牌
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean orphan media files, dangling records and expired reset tokens",
	Long: `Clean orphan media files, dangling records and expired reset tokens.
This includes:
  - Delete prediction records whose image file no longer exists
  - Delete files under images/ that no prediction references
  - Purge expired password reset tokens

Run it while the server is stopped.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := maintenance.Options{}
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		filesOnly, _ := cmd.Flags().GetBool("files-only")
		recordsOnly, _ := cmd.Flags().GetBool("records-only")

		opts.SkipRecords = filesOnly
		opts.SkipFiles = recordsOnly
		opts.SkipTokens = filesOnly || recordsOnly

		if err := runClean(opts); err != nil {
			log.Fatalf("Clean failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("dry-run", false, "Only show what would be cleaned, don't actually delete")
	cleanCmd.Flags().Bool("files-only", false, "Only clean orphan storage files")
	cleanCmd.Flags().Bool("records-only", false, "Only clean records with missing files")
}

// runClean 执行清理
func runClean(opts maintenance.Options) error {
	config.InitConfig()

	container := app.NewContainer(config.Get())
	if err := container.InitDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer container.Close()

	if err := container.InitStorage(); err != nil {
		return err
	}

	sweeper := maintenance.NewSweeper(container.GetStorage(), container.PredictionsRepo, container.ResetRepo)
	report, err := sweeper.Run(context.Background(), opts)
	if err != nil {
		return err
	}

	printCleanReport(report, opts.DryRun)

	if len(report.Errors) > 0 {
		return fmt.Errorf("encountered %d errors during cleanup", len(report.Errors))
	}
	return nil
}

// printCleanReport 打印清理统计
func printCleanReport(report *maintenance.Report, dryRun bool) {
	if dryRun {
		for _, key := range report.MissingFiles {
			fmt.Printf("[DRY-RUN] Would delete records referencing missing file: %s\n", key)
		}
		for _, key := range report.OrphanFiles {
			fmt.Printf("[DRY-RUN] Would delete orphan file: %s\n", key)
		}
	}

	fmt.Println()
	fmt.Println("========================================")
	if dryRun {
		fmt.Println("           [DRY RUN MODE]")
	}
	fmt.Println("         Clean Statistics")
	fmt.Println("========================================")
	fmt.Printf("Missing files found:        %d\n", len(report.MissingFiles))
	fmt.Printf("Orphan storage files found: %d\n", len(report.OrphanFiles))
	fmt.Printf("Records deleted:            %d\n", report.DeletedRecords)
	fmt.Printf("Storage files deleted:      %d\n", report.DeletedFiles)
	fmt.Printf("Expired tokens purged:      %d\n", report.ExpiredTokens)
	fmt.Println("========================================")

	if len(report.Errors) > 0 {
		fmt.Println("\nErrors encountered:")
		for _, err := range report.Errors {
			fmt.Printf("  - %s\n", err)
		}
	}
}
