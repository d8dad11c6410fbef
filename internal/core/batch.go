package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
)

// BatchMirror 按顺序镜像多个种子,每个种子使用独立会话
type BatchMirror struct {
	opts          MirrorOptions
	batchDelay    time.Duration
	continueOnErr bool

	// 测试时可替换
	newMirror func(seed string, opts MirrorOptions) (mirrorRunner, error)
}

type mirrorRunner interface {
	Run(ctx context.Context) (*MirrorResult, error)
}

// BatchResult 单个种子的结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	Stats       models.MirrorStats
	RootDir     string
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量镜像摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalFiles    int
	TotalSize     int64
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchMirror 创建批量镜像器
// opts.FolderName 会被忽略,每个种子按自己的主机名生成目录
func NewBatchMirror(opts MirrorOptions, batchDelay time.Duration, continueOnErr bool) *BatchMirror {
	opts.FolderName = ""
	return &BatchMirror{
		opts:          opts,
		batchDelay:    batchDelay,
		continueOnErr: continueOnErr,
		newMirror: func(seed string, opts MirrorOptions) (mirrorRunner, error) {
			return NewMirror(seed, opts)
		},
	}
}

// Run 批量镜像URL列表
// 单个种子失败时按continueOnErr决定是否继续;ctx取消立即停止并返回错误
func (bm *BatchMirror) Run(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("开始批量镜像: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}
	startTime := time.Now()
	defer func() {
		summary.TotalDuration = time.Since(startTime).Seconds()
	}()

	for i, targetURL := range urls {
		utils.Infof("==================== [%d/%d] %s ====================", i+1, len(urls), targetURL)

		result := bm.mirrorSingleURL(ctx, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalFiles += result.Stats.DownloadedFiles
			summary.TotalSize += result.Stats.TotalSize
		} else {
			summary.FailCount++
			utils.Errorf("镜像失败 [%s]: %v", targetURL, result.Error)

			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if !bm.continueOnErr {
				utils.Warn("批量镜像中止 (--continue-on-error=false)")
				break
			}
		}

		if i < len(urls)-1 && bm.batchDelay > 0 {
			utils.Debugf("等待 %s 后处理下一个URL...", bm.batchDelay)
			select {
			case <-time.After(bm.batchDelay):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}
	}

	bm.logSummary(summary)
	return summary, nil
}

func (bm *BatchMirror) mirrorSingleURL(ctx context.Context, targetURL string) (result BatchResult) {
	result = BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()
	defer func() {
		result.Duration = time.Since(startTime).Seconds()
	}()

	mirror, err := bm.newMirror(targetURL, bm.opts)
	if err != nil {
		result.Error = fmt.Errorf("创建镜像任务失败: %w", err)
		return result
	}

	res, err := mirror.Run(ctx)
	if res != nil && res.Task != nil {
		result.Stats = res.Task.Stats
		result.RootDir = res.Task.RootDir
	}
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

func (bm *BatchMirror) logSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("批量镜像摘要")
	utils.Infof("总URL数: %d, 成功: %d, 失败: %d", summary.TotalURLs, summary.SuccessCount, summary.FailCount)
	utils.Infof("总文件数: %d, 总大小: %s", summary.TotalFiles, utils.FormatSize(summary.TotalSize))
	utils.Info("==================================================")

	for _, result := range summary.Results {
		if !result.Success {
			utils.Warnf("  - %s: %v", result.URL, result.Error)
		}
	}
}
