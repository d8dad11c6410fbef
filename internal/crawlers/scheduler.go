package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
	"golang.org/x/time/rate"
)

// linkedAsset 待扫描的外链CSS/JS
type linkedAsset struct {
	url   string
	depth int // 引用它的页面深度
}

// CrawlStats 爬取阶段统计
type CrawlStats struct {
	ExpandedPages int // 已解析并展开的页面
	LeafPages     int // 已抓取但未展开
	Discarded     int // 出队后丢弃
	FailedFetches int
	LinkedScanned int // 已扫描的外链CSS/JS
}

// Scheduler 广度优先爬取调度器
// 单线程运行: Visited 和 Frontier 只在此处被修改
type Scheduler struct {
	session *CrawlSession
	fetcher Fetcher
	writer  *ResourceWriter
	config  models.CrawlConfig
	limiter *rate.Limiter
	events  models.EventSink

	linked []linkedAsset
	stats  CrawlStats
}

// NewScheduler 创建调度器
func NewScheduler(session *CrawlSession, fetcher Fetcher, writer *ResourceWriter, config models.CrawlConfig, events models.EventSink) *Scheduler {
	if events == nil {
		events = models.NopSink
	}
	if len(config.ExcludedExtensions) == 0 {
		config.ExcludedExtensions = models.DefaultExcludedExtensions
	}

	limit := rate.Inf
	if config.PolitenessDelay > 0 {
		limit = rate.Every(config.PolitenessDelay)
	}

	return &Scheduler{
		session: session,
		fetcher: fetcher,
		writer:  writer,
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		events:  events,
	}
}

// Run 从种子开始爬取直到队列耗尽
// 只有种子抓取失败和ctx取消会返回错误
func (s *Scheduler) Run(ctx context.Context) error {
	utils.Infof("开始爬取: %s (最大深度: %d)", s.session.SeedURL, s.config.MaxDepth)

	if _, err := s.session.Frontier.Push(models.FrontierEntry{URL: s.session.SeedURL, Depth: 0}); err != nil {
		return err
	}

	for {
		if err := s.drainFrontier(ctx); err != nil {
			return err
		}
		if !s.config.ScanLinkedAssets || len(s.linked) == 0 {
			break
		}
		if err := s.scanLinked(ctx); err != nil {
			return err
		}
	}

	s.emit(models.Event{
		Kind:   models.EventPhaseCompleted,
		Detail: models.PhaseCrawl,
		Total:  s.session.Assets.Len(),
	})
	utils.Infof("爬取完成: 已访问 %d 个URL, 发现 %d 个资源, 展开 %d 个页面",
		s.session.Visited.Len(), s.session.Assets.Len(), s.stats.ExpandedPages)
	return nil
}

// Stats 返回统计
func (s *Scheduler) Stats() CrawlStats {
	return s.stats
}

func (s *Scheduler) drainFrontier(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, ok := s.session.Frontier.Pop()
		if !ok {
			return nil
		}
		if err := s.process(ctx, entry); err != nil {
			return err
		}
	}
}

// process 处理一个出队项: queued -> in_flight -> expanded/leaf
func (s *Scheduler) process(ctx context.Context, entry models.FrontierEntry) error {
	if s.session.Visited.Contains(entry.URL) || entry.Depth > s.config.MaxDepth {
		s.stats.Discarded++
		s.emit(models.Event{Kind: models.EventEntryDiscarded, URL: entry.URL, Depth: entry.Depth})
		return nil
	}

	page, err := s.fetch(ctx, entry.URL)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.session.Visited.Add(entry.URL)
	if s.session.Assets.Add(entry.URL) {
		s.emit(models.Event{Kind: models.EventAssetDiscovered, URL: entry.URL, Depth: entry.Depth})
	}
	utils.Debugf("深度 %d: %s (队列剩余 %d)", entry.Depth, entry.URL, s.session.Frontier.PendingCount())

	if err == nil && !page.IsSuccess() {
		err = &models.FetchError{URL: entry.URL, StatusCode: page.StatusCode}
	}
	if err != nil {
		if entry.URL == s.session.SeedURL {
			return fmt.Errorf("%w: %v", models.ErrSeedUnreachable, err)
		}
		s.recordFetchFailure(entry.URL, err)
		return nil
	}

	s.store(page, models.PhaseCrawl)

	kind := page.Kind()
	if kind != models.KindMarkup && !(s.config.ScanLinkedAssets && (kind == models.KindStyle || kind == models.KindScript)) {
		s.stats.LeafPages++
		s.emit(models.Event{Kind: models.EventPageLeaf, URL: entry.URL, Depth: entry.Depth, Detail: string(kind)})
		return nil
	}

	added := s.expand(page, kind, entry.Depth)
	s.stats.ExpandedPages++
	s.emit(models.Event{
		Kind:   models.EventPageCrawled,
		URL:    entry.URL,
		Depth:  entry.Depth,
		Detail: fmt.Sprintf("新增 %d 个资源, 队列剩余 %d", added, s.session.Frontier.PendingCount()),
	})
	return nil
}

// scanLinked 抓取并扫描新发现的外链CSS/JS,其中的引用按所属页面深度准入
func (s *Scheduler) scanLinked(ctx context.Context) error {
	batch := s.linked
	s.linked = nil

	for _, asset := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.session.Visited.Contains(asset.url) {
			continue
		}

		page, err := s.fetch(ctx, asset.url)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.session.Visited.Add(asset.url)

		if err == nil && !page.IsSuccess() {
			err = &models.FetchError{URL: asset.url, StatusCode: page.StatusCode}
		}
		if err != nil {
			// 下载阶段会再尝试一次
			s.recordFetchFailure(asset.url, err)
			continue
		}

		s.store(page, models.PhaseCrawl)

		kind := page.Kind()
		if kind == models.KindOther {
			kind = models.DetectKind("", asset.url)
		}
		added := s.expand(page, kind, asset.depth)
		s.stats.LinkedScanned++
		s.emit(models.Event{
			Kind:   models.EventLinkedScanned,
			URL:    asset.url,
			Depth:  asset.depth,
			Detail: fmt.Sprintf("新增 %d 个资源", added),
		})
	}
	return nil
}

func (s *Scheduler) fetch(ctx context.Context, rawURL string) (*models.PageContent, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.fetcher.Fetch(ctx, rawURL)
}

// store 写入页面,写入失败只记录不中断
func (s *Scheduler) store(page *models.PageContent, phase string) {
	file, err := s.writer.Write(page.URL, page.Body, page.ContentType)
	if err != nil {
		utils.Warnf("保存失败 [%s]: %v", page.URL, err)
		s.session.RecordFailure(failureFromError(page.URL, err, phase))
		s.emit(models.Event{Kind: models.EventWriteFailed, URL: page.URL, Detail: err.Error()})
		return
	}
	if s.session.Downloaded.Add(page.URL) {
		s.session.RecordFile(file, phase)
	}
}

// expand 提取引用并逐个准入,返回新加入资源集合的数量
func (s *Scheduler) expand(page *models.PageContent, kind models.ContentKind, depth int) int {
	pageURL, err := url.Parse(page.FinalURL)
	if err != nil || page.FinalURL == "" {
		pageURL, err = url.Parse(page.URL)
		if err != nil {
			return 0
		}
	}

	added := 0
	for _, ref := range Extract(kind, page.Body) {
		if s.admit(ref, pageURL, depth) {
			added++
		}
	}
	return added
}

// admit 候选URL准入规则
//   - 规范化失败或跨域: 丢弃
//   - 页面类候选(无扩展名或 .html/.php 等)出现在 depth == MaxDepth 的页面上: 丢弃
//   - 其余加入资源集合;未被排除、满足爬取条件且未访问/未入队的进入队列(depth+1)
func (s *Scheduler) admit(ref Reference, pageURL *url.URL, depth int) bool {
	abs, err := NormalizeReference(ref.Raw, pageURL, s.session.Base)
	if err != nil {
		return false
	}
	if !s.session.Filter.Allows(abs) {
		return false
	}

	ext := models.URLExtension(abs)
	crawlable := !models.HasExtension(ext, s.config.ExcludedExtensions)
	atMaxDepth := depth >= s.config.MaxDepth
	if crawlable && atMaxDepth && models.IsPageExtension(ext) {
		return false
	}

	added := s.session.Assets.Add(abs)
	if added {
		s.emit(models.Event{Kind: models.EventAssetDiscovered, URL: abs, Depth: depth + 1, Detail: string(ref.Strategy)})
		if s.config.ScanLinkedAssets && (ext == ".css" || ext == ".js") {
			s.linked = append(s.linked, linkedAsset{url: abs, depth: depth})
		}
	}

	if crawlable && !atMaxDepth && s.crawlEligible(abs, depth) && !s.session.Visited.Contains(abs) {
		pushed, err := s.session.Frontier.Push(models.FrontierEntry{URL: abs, Depth: depth + 1, SourceURL: pageURL.String()})
		if err == nil && pushed {
			s.emit(models.Event{Kind: models.EventURLEnqueued, URL: abs, Depth: depth + 1})
		}
	}
	return added
}

// crawlEligible 带查询参数的URL只在父页面深度不超过 MaxQueryDepth 时入队
func (s *Scheduler) crawlEligible(abs string, parentDepth int) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	if u.RawQuery != "" && parentDepth > s.config.MaxQueryDepth {
		return false
	}
	return true
}

func (s *Scheduler) recordFetchFailure(rawURL string, err error) {
	s.stats.FailedFetches++
	utils.Debugf("抓取失败 [%s]: %v", rawURL, err)
	s.session.RecordFailure(failureFromError(rawURL, err, models.PhaseCrawl))
	s.emit(models.Event{Kind: models.EventFetchFailed, URL: rawURL, Detail: err.Error()})
}

func (s *Scheduler) emit(e models.Event) {
	e.Time = time.Now()
	s.events.Emit(e)
}
