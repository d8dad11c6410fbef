package crawlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

// fakePage 预置响应
type fakePage struct {
	status      int
	contentType string
	body        string
	err         error
}

// fakeFetcher 基于内存的抓取器,统计每个URL的请求次数
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakePage
	calls map[string]int
}

func newFakeFetcher(pages map[string]fakePage) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, u string) (*models.PageContent, error) {
	f.mu.Lock()
	f.calls[u]++
	p, ok := f.pages[u]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &models.FetchError{URL: u, Cause: err}
	}
	if !ok {
		return &models.PageContent{URL: u, FinalURL: u, StatusCode: http.StatusNotFound, ContentType: "text/plain"}, nil
	}
	if p.err != nil {
		return nil, &models.FetchError{URL: u, Cause: p.err}
	}
	status := p.status
	if status == 0 {
		status = http.StatusOK
	}
	return &models.PageContent{URL: u, FinalURL: u, StatusCode: status, ContentType: p.contentType, Body: []byte(p.body)}, nil
}

func (f *fakeFetcher) callCount(u string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[u]
}

func htmlPage(body string) fakePage {
	return fakePage{contentType: "text/html; charset=utf-8", body: body}
}

var errConnRefused = errors.New("connection refused")

// newTestSession 创建写入临时目录的会话
func newTestSession(t *testing.T, seed string) (*CrawlSession, *ResourceWriter) {
	t.Helper()
	root := t.TempDir()
	session, err := NewCrawlSession(seed, root)
	if err != nil {
		t.Fatalf("NewCrawlSession() error = %v", err)
	}
	return session, NewResourceWriter(root, session.Mapper, nil)
}

func testCrawlConfig(maxDepth int) models.CrawlConfig {
	cfg := models.DefaultMirrorConfig().Crawl
	cfg.MaxDepth = maxDepth
	cfg.PolitenessDelay = 0
	cfg.ScanLinkedAssets = false
	return cfg
}

// eventRecorder 并发安全的事件记录器
type eventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *eventRecorder) Emit(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(kind models.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) ofKind(kind models.EventKind) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
