package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/crawlers"
	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
)

// MirrorOptions 单次镜像运行的参数
type MirrorOptions struct {
	Config models.MirrorConfig

	// 输出根目录,镜像写到 <OutputDir>/<FolderName>
	OutputDir string
	// 为空时按主机名生成,批量模式下必须为空
	FolderName  string
	WriteReport bool

	HeaderProvider models.HeaderProvider
	Events         models.EventSink

	// 为空时使用CollyFetcher
	Fetcher crawlers.Fetcher
}

// MirrorResult 镜像运行结果
type MirrorResult struct {
	Task      *models.MirrorTask
	Report    *models.MirrorReport
	ReportDir string

	Crawl     crawlers.CrawlStats
	Download  crawlers.DownloadStats
	Rewritten int
}

// Mirror 单个种子的镜像协调器
// 流程: 创建根目录 → 爬取 → 下载剩余资源 → 改写链接 → 生成报告
type Mirror struct {
	opts    MirrorOptions
	task    *models.MirrorTask
	session *crawlers.CrawlSession
	events  models.EventSink
}

// NewMirror 创建镜像协调器,种子缺少协议时补全https://
func NewMirror(seed string, opts MirrorOptions) (*Mirror, error) {
	normalized, err := models.NormalizeSeedURL(seed)
	if err != nil {
		return nil, err
	}

	folder := opts.FolderName
	if folder == "" {
		folder = models.DefaultFolderName(normalized)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	opts.FolderName = folder

	task, err := models.NewMirrorTask(normalized, filepath.Join(opts.OutputDir, folder), opts.Config)
	if err != nil {
		return nil, err
	}

	events := opts.Events
	if events == nil {
		events = models.NopSink
	}

	return &Mirror{opts: opts, task: task, events: events}, nil
}

// Task 任务信息
func (m *Mirror) Task() *models.MirrorTask {
	return m.task
}

// Run 执行镜像
// 只有根目录创建失败、种子抓取失败和ctx取消会返回错误;
// 单个资源的失败记入报告
func (m *Mirror) Run(ctx context.Context) (*MirrorResult, error) {
	startTime := time.Now()
	m.task.StartedAt = &startTime
	m.task.Status = models.TaskStatusRunning
	result := &MirrorResult{Task: m.task}

	utils.Infof("开始镜像: %s", m.task.TargetURL)
	utils.Infof("镜像目录: %s", m.task.RootDir)

	if err := os.MkdirAll(m.task.RootDir, 0755); err != nil {
		err = &models.WriteError{URL: m.task.TargetURL, Path: m.task.RootDir, Cause: err}
		m.finish(startTime, err)
		return result, fmt.Errorf("创建镜像根目录失败: %w", err)
	}

	session, err := crawlers.NewCrawlSession(m.task.TargetURL, m.task.RootDir)
	if err != nil {
		m.finish(startTime, err)
		return result, err
	}
	m.session = session
	m.task.ID = session.ID

	cfg := m.task.Config
	fetcher := m.opts.Fetcher
	if fetcher == nil {
		fetcher = crawlers.NewCollyFetcher(cfg.Fetch, m.opts.HeaderProvider)
	}
	writer := crawlers.NewResourceWriter(session.RootDir, session.Mapper, m.events)

	m.events.Emit(models.Event{Kind: models.EventSessionStarted, URL: session.SeedURL, Detail: session.ID, Time: startTime})

	runErr := m.run(ctx, fetcher, writer, result)

	m.finish(startTime, runErr)
	result.Report = m.buildReport(result)
	if m.opts.WriteReport {
		reporter := utils.NewReporter(m.opts.OutputDir, m.opts.FolderName)
		if err := reporter.GenerateReport(result.Report); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		} else {
			result.ReportDir = reporter.Dir()
		}
	}

	if runErr != nil {
		return result, runErr
	}

	utils.Infof("镜像完成: %d 个文件, 共 %s, 失败 %d, 耗时 %.2f秒",
		m.task.Stats.DownloadedFiles, utils.FormatSize(m.task.Stats.TotalSize),
		m.task.Stats.FailedFiles, m.task.Stats.Duration)
	return result, nil
}

func (m *Mirror) run(ctx context.Context, fetcher crawlers.Fetcher, writer *crawlers.ResourceWriter, result *MirrorResult) error {
	cfg := m.task.Config

	scheduler := crawlers.NewScheduler(m.session, fetcher, writer, cfg.Crawl, m.events)
	err := scheduler.Run(ctx)
	result.Crawl = scheduler.Stats()
	if err != nil {
		return err
	}

	workers := crawlers.NewWorkerBudget(cfg.Download.SafetyReserveMemory).Workers(cfg.Download.Workers)
	downloader := crawlers.NewDownloader(m.session, fetcher, writer, cfg.Download, workers, m.events)
	result.Download, err = downloader.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.RewriteLinks {
		result.Rewritten, err = crawlers.NewLinkRewriter(m.session, m.events).Run(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) finish(startTime time.Time, err error) {
	now := time.Now()
	m.task.CompletedAt = &now
	m.task.Stats.Duration = now.Sub(startTime).Seconds()

	switch {
	case err == nil:
		m.task.Status = models.TaskStatusCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		m.task.Status = models.TaskStatusCancelled
		m.task.ErrorMessage = err.Error()
	default:
		m.task.Status = models.TaskStatusFailed
		m.task.ErrorMessage = err.Error()
	}
}

// buildReport 汇总会话状态
// 爬取阶段失败但下载阶段补抓成功的URL不计为失败;
// 两个阶段都失败的URL只保留最后一次记录
func (m *Mirror) buildReport(result *MirrorResult) *models.MirrorReport {
	failures := make([]models.FailedFileInfo, 0)
	index := make(map[string]int)
	for _, f := range m.session.Failures() {
		if m.session.Downloaded.Contains(f.URL) {
			continue
		}
		if i, ok := index[f.URL]; ok {
			failures[i] = f
			continue
		}
		index[f.URL] = len(failures)
		failures = append(failures, f)
	}

	stats := &m.task.Stats
	stats.VisitedURLs = m.session.Visited.Len()
	stats.AssetURLs = m.session.Assets.Len()
	stats.CrawledPages = result.Crawl.ExpandedPages
	stats.DownloadedFiles = m.session.Downloaded.Len()
	stats.FailedFiles = len(failures)
	stats.SkippedFiles = result.Download.Skipped
	stats.RewrittenPages = result.Rewritten
	stats.TotalSize = m.session.TotalSize()

	return &models.MirrorReport{
		TaskID:       m.task.ID,
		TargetURL:    m.task.TargetURL,
		Domain:       m.task.Domain,
		StartTime:    *m.task.StartedAt,
		EndTime:      *m.task.CompletedAt,
		Duration:     stats.Duration,
		Stats:        *stats,
		SuccessFiles: m.session.Files(),
		FailedFiles:  failures,
		RootDir:      m.task.RootDir,
		Config:       m.task.Config,
	}
}
