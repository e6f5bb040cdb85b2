// Package maintenance 离线清理：孤儿媒体文件、缺失文件的记录和过期重置令牌
package maintenance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/image-predict/database/repo/accounts"
	"github.com/anoixa/image-predict/database/repo/predictions"
	"github.com/anoixa/image-predict/internal/ingest"
	"github.com/anoixa/image-predict/storage"
)

// Options 清理范围
type Options struct {
	DryRun      bool
	SkipRecords bool
	SkipFiles   bool
	SkipTokens  bool
}

// Report 清理统计
type Report struct {
	MissingFiles   []string // 记录存在但文件缺失
	OrphanFiles    []string // 文件存在但没有记录
	DeletedRecords int64
	DeletedFiles   int
	ExpiredTokens  int64
	Errors         []string
}

// Sweeper 清理器
type Sweeper struct {
	storage     storage.Provider
	predictions *predictions.Repository
	resets      *accounts.ResetTokenRepository
	now         func() time.Time
}

// NewSweeper 创建清理器
func NewSweeper(store storage.Provider, predictionsRepo *predictions.Repository, resets *accounts.ResetTokenRepository) *Sweeper {
	return &Sweeper{
		storage:     store,
		predictions: predictionsRepo,
		resets:      resets,
		now:         time.Now,
	}
}

// Run 执行清理，单项失败记入 Report.Errors 并继续
func (s *Sweeper) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{}

	referenced, err := s.predictions.ListImageFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced files: %w", err)
	}

	if !opts.SkipRecords {
		if err := s.sweepRecords(ctx, referenced, opts.DryRun, report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("records: %v", err))
		}
	}

	if !opts.SkipFiles {
		if err := s.sweepFiles(ctx, referenced, opts.DryRun, report); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("files: %v", err))
		}
	}

	if !opts.SkipTokens && !opts.DryRun {
		n, err := s.resets.WithContext(ctx).PurgeExpired(s.now())
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("reset tokens: %v", err))
		}
		report.ExpiredTokens = n
	}

	return report, nil
}

// sweepRecords 删除文件已丢失的预测记录
func (s *Sweeper) sweepRecords(ctx context.Context, referenced []string, dryRun bool, report *Report) error {
	for _, key := range referenced {
		if err := ctx.Err(); err != nil {
			return err
		}
		exists, err := s.storage.Exists(ctx, key)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("check %s: %v", key, err))
			continue
		}
		if !exists {
			report.MissingFiles = append(report.MissingFiles, key)
		}
	}

	if dryRun || len(report.MissingFiles) == 0 {
		return nil
	}

	n, err := s.predictions.DeleteByImageFiles(ctx, report.MissingFiles)
	if err != nil {
		return err
	}
	report.DeletedRecords = n
	log.Printf("[Clean] Deleted %d records with missing files", n)
	return nil
}

// sweepFiles 删除 images/ 下没有记录引用的文件
func (s *Sweeper) sweepFiles(ctx context.Context, referenced []string, dryRun bool, report *Report) error {
	keys, err := s.storage.List(ctx, ingest.ImagePrefix)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		known[key] = struct{}{}
	}

	for _, key := range keys {
		if _, ok := known[key]; ok {
			continue
		}
		// 列表之后可能有新记录写入
		stillReferenced, err := s.predictions.ImageFileReferenced(ctx, key)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("check %s: %v", key, err))
			continue
		}
		if stillReferenced {
			continue
		}

		report.OrphanFiles = append(report.OrphanFiles, key)
		if dryRun {
			continue
		}
		if err := s.storage.DeleteWithContext(ctx, key); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("delete %s: %v", key, err))
			continue
		}
		report.DeletedFiles++
	}
	return nil
}
