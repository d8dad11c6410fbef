package crawlers

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
	"golang.org/x/sync/errgroup"
)

// DownloadStats 下载阶段统计
type DownloadStats struct {
	Total      int // 待下载数
	Downloaded int
	Failed     int
	Skipped    int // 按扩展名跳过
}

// Downloader 下载调度器
// 固定数量的worker从有界channel消费资源URL,channel满时生产者阻塞
type Downloader struct {
	session *CrawlSession
	fetcher Fetcher
	writer  *ResourceWriter
	config  models.DownloadConfig
	workers int
	events  models.EventSink

	// 每个URL至多尝试一次
	claimed *URLSet

	downloaded atomic.Int64
	failed     atomic.Int64
}

// NewDownloader 创建下载调度器
func NewDownloader(session *CrawlSession, fetcher Fetcher, writer *ResourceWriter, config models.DownloadConfig, workers int, events models.EventSink) *Downloader {
	if events == nil {
		events = models.NopSink
	}
	if workers < 1 {
		workers = 1
	}
	if config.ProgressEvery < 1 {
		config.ProgressEvery = 10
	}
	return &Downloader{
		session: session,
		fetcher: fetcher,
		writer:  writer,
		config:  config,
		workers: workers,
		events:  events,
		claimed: NewURLSet(),
	}
}

// Pending 资源集合中尚未下载且不在跳过列表中的URL,按字典序
func (d *Downloader) Pending() (pending []string, skipped []string) {
	for _, u := range d.session.Assets.Snapshot() {
		if d.session.Downloaded.Contains(u) {
			continue
		}
		if models.HasExtension(models.URLExtension(u), d.config.SkipExtensions) {
			skipped = append(skipped, u)
			continue
		}
		pending = append(pending, u)
	}
	return pending, skipped
}

// Run 下载全部待处理资源
// 单个资源失败只记录,不会中断其他worker;只有ctx取消会返回错误
func (d *Downloader) Run(ctx context.Context) (DownloadStats, error) {
	pending, skipped := d.Pending()
	for _, u := range skipped {
		d.emit(models.Event{Kind: models.EventAssetSkipped, URL: u, Detail: "扩展名在跳过列表中"})
	}

	stats := DownloadStats{Total: len(pending), Skipped: len(skipped)}
	if len(pending) == 0 {
		d.emit(models.Event{Kind: models.EventPhaseCompleted, Detail: models.PhaseDownload})
		return stats, nil
	}

	utils.Infof("开始下载 %d 个资源 (并发数: %d)", len(pending), d.workers)

	total := len(pending)
	jobs := make(chan string, d.workers*2)
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for _, u := range pending {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case jobs <- u:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for u := range jobs {
				d.downloadOne(gctx, u)

				n := int(completed.Add(1))
				if n%d.config.ProgressEvery == 0 || n == total {
					d.emit(models.Event{
						Kind:      models.EventProgress,
						Completed: n,
						Total:     total,
					})
				}
			}
			return nil
		})
	}

	err := g.Wait()

	stats.Downloaded = int(d.downloaded.Load())
	stats.Failed = int(d.failed.Load())
	d.emit(models.Event{Kind: models.EventPhaseCompleted, Detail: models.PhaseDownload, Completed: int(completed.Load()), Total: total})
	utils.Infof("下载完成: 成功 %d, 失败 %d, 跳过 %d", stats.Downloaded, stats.Failed, stats.Skipped)
	return stats, err
}

func (d *Downloader) downloadOne(ctx context.Context, u string) {
	if d.session.Downloaded.Contains(u) || !d.claimed.Add(u) {
		return
	}
	if ctx.Err() != nil {
		return
	}

	page, err := d.fetcher.Fetch(ctx, u)
	if err == nil && !page.IsSuccess() {
		err = &models.FetchError{URL: u, StatusCode: page.StatusCode}
	}
	if err != nil {
		d.fail(u, err, models.EventFetchFailed)
		return
	}

	file, err := d.writer.Write(u, page.Body, page.ContentType)
	if err != nil {
		d.fail(u, err, models.EventWriteFailed)
		return
	}

	if d.session.Downloaded.Add(u) {
		d.session.RecordFile(file, models.PhaseDownload)
		d.downloaded.Add(1)
		d.emit(models.Event{Kind: models.EventAssetDownloaded, URL: u, Detail: file.LocalPath})
	}
}

func (d *Downloader) fail(u string, err error, kind models.EventKind) {
	d.failed.Add(1)
	utils.Debugf("下载失败 [%s]: %v", u, err)
	d.session.RecordFailure(failureFromError(u, err, models.PhaseDownload))
	d.emit(models.Event{Kind: kind, URL: u, Detail: err.Error()})
}

func (d *Downloader) emit(e models.Event) {
	e.Time = time.Now()
	d.events.Emit(e)
}
