package crawlers

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
)

// rewriteAttrs 需要改写为本地路径的属性
var rewriteAttrs = []string{"href", "src", "action", "poster"}

// 不改写的引用前缀
var keepPrefixes = []string{"#", "javascript:", "mailto:", "tel:", "data:"}

// LinkRewriter 下载完成后把HTML中的站内引用改写为相对本地路径
type LinkRewriter struct {
	session *CrawlSession
	events  models.EventSink
}

// NewLinkRewriter 创建链接改写器
func NewLinkRewriter(session *CrawlSession, events models.EventSink) *LinkRewriter {
	if events == nil {
		events = models.NopSink
	}
	return &LinkRewriter{session: session, events: events}
}

// Run 改写所有已写入的HTML文件,返回成功改写的页面数
// 单页失败只发出事件
func (r *LinkRewriter) Run(ctx context.Context) (int, error) {
	rewritten := 0
	for _, file := range r.session.Written() {
		if err := ctx.Err(); err != nil {
			return rewritten, err
		}
		ext := strings.ToLower(path.Ext(file.LocalPath))
		if ext != ".html" && ext != ".htm" {
			continue
		}
		if models.DetectKind(file.ContentType, file.URL) != models.KindMarkup {
			continue
		}

		changed, err := r.rewriteFile(file)
		if err != nil {
			utils.Warnf("重写链接失败 [%s]: %v", file.LocalPath, err)
			r.emit(models.Event{Kind: models.EventRewriteFailed, URL: file.URL, Detail: err.Error()})
			continue
		}
		if changed > 0 {
			rewritten++
			r.emit(models.Event{Kind: models.EventPageRewritten, URL: file.URL, Detail: file.LocalPath})
		}
	}

	r.emit(models.Event{Kind: models.EventPhaseCompleted, Detail: models.PhaseRewrite, Completed: rewritten})
	return rewritten, nil
}

func (r *LinkRewriter) rewriteFile(file models.MirrorFile) (int, error) {
	full := filepath.Join(r.session.RootDir, filepath.FromSlash(file.LocalPath))
	content, err := os.ReadFile(full)
	if err != nil {
		return 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return 0, err
	}

	pageURL, err := url.Parse(file.URL)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, attr := range rewriteAttrs {
		doc.Find("[" + attr + "]").Each(func(_ int, sel *goquery.Selection) {
			// <base> 改写后会改变页面内所有相对路径的解析
			if goquery.NodeName(sel) == "base" {
				return
			}
			val, _ := sel.Attr(attr)
			if local, ok := r.localize(val, pageURL, file.LocalPath); ok && local != val {
				sel.SetAttr(attr, local)
				changed++
			}
		})
	}
	if changed == 0 {
		return 0, nil
	}

	out, err := doc.Html()
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(full, []byte(out), 0644); err != nil {
		return 0, err
	}
	return changed, nil
}

// localize 计算引用相对当前页面的本地路径,片段保留
func (r *LinkRewriter) localize(val string, pageURL *url.URL, pagePath string) (string, bool) {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	for _, prefix := range keepPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}

	fragment := ""
	if i := strings.Index(trimmed, "#"); i >= 0 {
		fragment = trimmed[i:]
	}

	abs, err := NormalizeReference(trimmed, pageURL, r.session.Base)
	if err != nil || !r.session.Downloaded.Contains(abs) {
		return "", false
	}
	target, ok := r.session.Mapper.Lookup(abs)
	if !ok {
		return "", false
	}

	rel, err := filepath.Rel(filepath.FromSlash(path.Dir(pagePath)), filepath.FromSlash(target))
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel) + fragment, true
}

func (r *LinkRewriter) emit(e models.Event) {
	e.Time = time.Now()
	r.events.Emit(e)
}
