package crawlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

func TestScheduler_SeedLevel(t *testing.T) {
	links := `<link href="/style.css"><script src="app.js"></script><a href="other.html">o</a>
<script src="https://other-domain.com/x.js"></script>`

	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":           htmlPage(`<html><head>` + links + `</head></html>`),
		"https://example.com/other.html": htmlPage(`<html>` + links + `</html>`),
	})
	session, writer := newTestSession(t, "https://example.com/")
	rec := &eventRecorder{}

	s := NewScheduler(session, fetcher, writer, testCrawlConfig(3), rec)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, u := range []string{
		"https://example.com/",
		"https://example.com/style.css",
		"https://example.com/app.js",
		"https://example.com/other.html",
	} {
		if !session.Assets.Contains(u) {
			t.Errorf("资源集合缺少 %s", u)
		}
	}
	if session.Assets.Contains("https://other-domain.com/x.js") {
		t.Error("跨域资源不应加入资源集合")
	}
	if session.Assets.Len() != 4 {
		t.Errorf("第二个页面中重复的链接不应再次加入, Assets = %v", session.Assets.Snapshot())
	}
	if n := fetcher.callCount("https://example.com/other.html"); n != 1 {
		t.Errorf("other.html 抓取次数 = %d, want 1", n)
	}
	if fetcher.callCount("https://example.com/style.css") != 0 {
		t.Error("静态资源不应在爬取阶段抓取")
	}
	if !session.Downloaded.Contains("https://example.com/") || !session.Downloaded.Contains("https://example.com/other.html") {
		t.Error("爬取阶段抓取的页面应写入磁盘")
	}
	if rec.count(models.EventPageCrawled) != 2 {
		t.Errorf("PageCrawled 事件数 = %d, want 2", rec.count(models.EventPageCrawled))
	}
	if rec.count(models.EventAssetDiscovered) != 4 {
		t.Errorf("AssetDiscovered 事件数 = %d, want 4", rec.count(models.EventAssetDiscovered))
	}
}

func TestScheduler_DepthLimit(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":       htmlPage(`<a href="/a.html">a</a>`),
		"https://example.com/a.html": htmlPage(`<a href="/b.html">b</a><img src="/img/a.png">`),
		"https://example.com/b.html": htmlPage(`<a href="/c.html">c</a>`),
	})
	session, writer := newTestSession(t, "https://example.com/")

	s := NewScheduler(session, fetcher, writer, testCrawlConfig(1), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fetcher.callCount("https://example.com/a.html") != 1 {
		t.Error("深度1的页面应被抓取")
	}
	if fetcher.callCount("https://example.com/b.html") != 0 {
		t.Error("超出最大深度的页面不应被抓取")
	}
	if session.Assets.Contains("https://example.com/b.html") {
		t.Error("最大深度页面上的页面链接应被丢弃")
	}
	if !session.Assets.Contains("https://example.com/img/a.png") {
		t.Error("最大深度页面上的静态资源仍应加入资源集合")
	}
}

func TestScheduler_MaxDepthKeepsUnlistedAssets(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/": htmlPage(`<a href="/guide.docx">g</a><img src="/hero.avif">
<a href="/data.json">d</a><a href="/list.php">l</a><a href="/about">a</a><a href="/news/">n</a>`),
	})
	session, writer := newTestSession(t, "https://example.com/")

	s := NewScheduler(session, fetcher, writer, testCrawlConfig(0), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	tests := []struct {
		name  string
		url   string
		asset bool
	}{
		{"未列出的文档", "https://example.com/guide.docx", true},
		{"未列出的图片", "https://example.com/hero.avif", true},
		{"JSON数据", "https://example.com/data.json", true},
		{"php页面", "https://example.com/list.php", false},
		{"无扩展名页面", "https://example.com/about", false},
		{"目录页面", "https://example.com/news/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := session.Assets.Contains(tt.url); got != tt.asset {
				t.Errorf("Assets.Contains(%s) = %v, want %v", tt.url, got, tt.asset)
			}
			if fetcher.callCount(tt.url) != 0 {
				t.Errorf("最大深度页面上的链接不应在爬取阶段抓取: %s", tt.url)
			}
		})
	}
}

func TestScheduler_DepthZero(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/": htmlPage(`<a href="/a.html">a</a><link href="/s.css">`),
	})
	session, writer := newTestSession(t, "https://example.com")

	s := NewScheduler(session, fetcher, writer, testCrawlConfig(0), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if session.Visited.Len() != 1 {
		t.Errorf("深度0只应访问种子, Visited = %v", session.Visited.Snapshot())
	}
	if session.Assets.Contains("https://example.com/a.html") || !session.Assets.Contains("https://example.com/s.css") {
		t.Errorf("Assets = %v", session.Assets.Snapshot())
	}
}

func TestScheduler_QueryDepth(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":          htmlPage(`<a href="/p1.html">1</a>`),
		"https://example.com/p1.html":   htmlPage(`<a href="/list.html?page=2">l</a><a href="deep.html">d</a>`),
		"https://example.com/deep.html": htmlPage(`<a href="/search.html?q=x">s</a>`),
	})
	session, writer := newTestSession(t, "https://example.com/")

	s := NewScheduler(session, fetcher, writer, testCrawlConfig(3), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if fetcher.callCount("https://example.com/list.html?page=2") != 1 {
		t.Error("深度1页面上的带参数链接应入队")
	}
	if fetcher.callCount("https://example.com/search.html?q=x") != 0 {
		t.Error("深度2页面上的带参数链接不应入队")
	}
	if !session.Assets.Contains("https://example.com/search.html?q=x") {
		t.Error("不入队的带参数链接仍应加入资源集合")
	}
}

func TestScheduler_ScriptJSONPattern(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/": htmlPage(`<html><script>var cfg = {"src": "/data/feed.json"};</script></html>`),
	})
	session, writer := newTestSession(t, "https://example.com/")

	s := NewScheduler(session, fetcher, writer, testCrawlConfig(3), nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !session.Assets.Contains("https://example.com/data/feed.json") {
		t.Errorf("Assets = %v", session.Assets.Snapshot())
	}
}

func TestScheduler_SeedFailure(t *testing.T) {
	tests := []struct {
		name string
		page fakePage
	}{
		{"网络错误", fakePage{err: errConnRefused}},
		{"HTTP 500", fakePage{status: 500, contentType: "text/html", body: "oops"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher(map[string]fakePage{"https://example.com/": tt.page})
			session, writer := newTestSession(t, "https://example.com/")

			err := NewScheduler(session, fetcher, writer, testCrawlConfig(3), nil).Run(context.Background())
			if !errors.Is(err, models.ErrSeedUnreachable) {
				t.Errorf("Run() error = %v, want ErrSeedUnreachable", err)
			}
		})
	}
}

func TestScheduler_PageFailureContinues(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":          htmlPage(`<a href="/gone.html">x</a><a href="/down.html">y</a><a href="/ok.html">z</a>`),
		"https://example.com/down.html": {err: errConnRefused},
		"https://example.com/ok.html":   htmlPage(`ok`),
	})
	session, writer := newTestSession(t, "https://example.com/")
	rec := &eventRecorder{}

	s := NewScheduler(session, fetcher, writer, testCrawlConfig(3), rec)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !session.Downloaded.Contains("https://example.com/ok.html") {
		t.Error("其他页面失败不应影响后续页面")
	}
	if session.Downloaded.Contains("https://example.com/gone.html") {
		t.Error("404页面不应写入")
	}
	if rec.count(models.EventFetchFailed) != 2 {
		t.Errorf("FetchFailed 事件数 = %d, want 2", rec.count(models.EventFetchFailed))
	}
	if got := len(session.Failures()); got != 2 {
		t.Errorf("失败记录数 = %d, want 2", got)
	}
	if s.Stats().FailedFetches != 2 {
		t.Errorf("FailedFetches = %d", s.Stats().FailedFetches)
	}
}

func TestScheduler_ScanLinkedAssets(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":              htmlPage(`<link rel="stylesheet" href="/css/site.css">`),
		"https://example.com/css/site.css":  {contentType: "text/css", body: `@import "theme.css"; body{background:url(../img/bg.png)}`},
		"https://example.com/css/theme.css": {contentType: "text/css", body: `h1{background:url(/img/h1.png)}`},
	})
	session, writer := newTestSession(t, "https://example.com/")
	cfg := testCrawlConfig(3)
	cfg.ScanLinkedAssets = true

	s := NewScheduler(session, fetcher, writer, cfg, nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, u := range []string{
		"https://example.com/img/bg.png",
		"https://example.com/css/theme.css",
		"https://example.com/img/h1.png",
	} {
		if !session.Assets.Contains(u) {
			t.Errorf("资源集合缺少 %s", u)
		}
	}
	if !session.Downloaded.Contains("https://example.com/css/site.css") {
		t.Error("已扫描的CSS应写入磁盘")
	}
	if s.Stats().LinkedScanned != 2 {
		t.Errorf("LinkedScanned = %d, want 2", s.Stats().LinkedScanned)
	}
}

func TestScheduler_Cancelled(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/": htmlPage(`<a href="/a.html">a</a>`),
	})
	session, writer := newTestSession(t, "https://example.com/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewScheduler(session, fetcher, writer, testCrawlConfig(3), nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestScheduler_PolitenessDelay(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakePage{
		"https://example.com/":       htmlPage(`<a href="/a.html">a</a><a href="/b.html">b</a>`),
		"https://example.com/a.html": htmlPage(`a`),
		"https://example.com/b.html": htmlPage(`b`),
	})
	session, writer := newTestSession(t, "https://example.com/")
	cfg := testCrawlConfig(3)
	cfg.PolitenessDelay = 50 * time.Millisecond

	start := time.Now()
	if err := NewScheduler(session, fetcher, writer, cfg, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// 三次抓取至少间隔两次
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("抓取间隔未生效: %v", elapsed)
	}
}
