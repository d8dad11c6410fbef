package crawlers

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"golang.org/x/net/html"
)

// Strategy 提取策略
type Strategy string

const (
	StrategyMarkup Strategy = "markup" // HTML属性
	StrategyStyle  Strategy = "style"  // CSS url()/@import
	StrategyScript Strategy = "script" // 脚本文本正则匹配, 尽力而为
)

// Reference 页面中发现的原始引用(未规范化)
type Reference struct {
	Raw      string
	Strategy Strategy
}

// referenceSet 保持插入顺序的去重集合,首个发现的策略生效
type referenceSet struct {
	seen map[string]struct{}
	refs []Reference
}

func newReferenceSet() *referenceSet {
	return &referenceSet{seen: make(map[string]struct{})}
}

func (s *referenceSet) add(raw string, strategy Strategy) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if _, ok := s.seen[raw]; ok {
		return
	}
	s.seen[raw] = struct{}{}
	s.refs = append(s.refs, Reference{Raw: raw, Strategy: strategy})
}

func (s *referenceSet) addAll(raws []string, strategy Strategy) {
	for _, r := range raws {
		s.add(r, strategy)
	}
}

// Extract 根据内容类型运行对应策略,返回去重后的引用
// HTML内容除属性扫描外,还会对整篇文本运行CSS和脚本策略
func Extract(kind models.ContentKind, content []byte) []Reference {
	set := newReferenceSet()

	switch kind {
	case models.KindMarkup:
		set.addAll(ExtractMarkup(content), StrategyMarkup)
		text := string(content)
		set.addAll(ExtractStyle(text), StrategyStyle)
		set.addAll(ExtractScript(text), StrategyScript)
	case models.KindStyle:
		set.addAll(ExtractStyle(string(content)), StrategyStyle)
	case models.KindScript:
		set.addAll(ExtractScript(string(content)), StrategyScript)
	}

	return set.refs
}

// ========== HTML属性策略 ==========

// 各属性对应的标签
var (
	hrefTags = map[string]bool{"a": true, "link": true, "area": true, "base": true}
	srcTags  = map[string]bool{
		"script": true, "img": true, "iframe": true, "frame": true, "embed": true,
		"source": true, "audio": true, "video": true, "track": true, "input": true,
	}
	srcsetTags = map[string]bool{"img": true, "source": true}
)

// ExtractMarkup 遍历HTML节点树,收集承载资源引用的属性值
// style属性和<style>内容交给CSS策略
func ExtractMarkup(content []byte) []string {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil
	}

	set := newReferenceSet()
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			collectElement(n, set)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	out := make([]string, 0, len(set.refs))
	for _, r := range set.refs {
		out = append(out, r.Raw)
	}
	return out
}

func collectElement(n *html.Node, set *referenceSet) {
	tag := strings.ToLower(n.Data)

	var httpEquiv, metaContent string
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		switch {
		case key == "href" && hrefTags[tag]:
			set.add(attr.Val, StrategyMarkup)
		case key == "src" && srcTags[tag]:
			set.add(attr.Val, StrategyMarkup)
		case key == "srcset" && srcsetTags[tag]:
			for _, candidate := range parseSrcset(attr.Val) {
				set.add(candidate, StrategyMarkup)
			}
		case key == "poster" && tag == "video":
			set.add(attr.Val, StrategyMarkup)
		case key == "action" && tag == "form":
			set.add(attr.Val, StrategyMarkup)
		case key == "style":
			set.addAll(ExtractStyle(attr.Val), StrategyMarkup)
		case tag == "meta" && key == "http-equiv":
			httpEquiv = strings.ToLower(strings.TrimSpace(attr.Val))
		case tag == "meta" && key == "content":
			metaContent = attr.Val
		}
	}

	if tag == "meta" && metaContent != "" {
		if httpEquiv == "refresh" {
			if target := refreshTarget(metaContent); target != "" {
				set.add(target, StrategyMarkup)
			}
		} else if looksLikeReference(metaContent) {
			set.add(metaContent, StrategyMarkup)
		}
	}

	if tag == "style" {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				set.addAll(ExtractStyle(c.Data), StrategyMarkup)
			}
		}
	}
}

// looksLikeReference meta content 只有形如URL时才视为引用
func looksLikeReference(v string) bool {
	v = strings.TrimSpace(v)
	for _, prefix := range []string{"http://", "https://", "//", "/", "./", "../"} {
		if strings.HasPrefix(v, prefix) {
			return true
		}
	}
	return false
}

// refreshTarget 解析 "5; url=/next" 中的目标
func refreshTarget(content string) string {
	lower := strings.ToLower(content)
	idx := strings.Index(lower, "url=")
	if idx < 0 {
		return ""
	}
	target := strings.TrimSpace(content[idx+len("url="):])
	return strings.Trim(target, `'"`)
}

// parseSrcset 解析 "a.png 1x, b.png 2x"
func parseSrcset(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		fields := strings.Fields(part)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

// ========== CSS策略 ==========

var (
	cssURLPattern    = regexp.MustCompile(`url\(\s*['"]?([^'")]+?)['"]?\s*\)`)
	cssImportPattern = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)
)

// ExtractStyle 提取 url(...) 与 @import "..." 引用,去除引号
func ExtractStyle(text string) []string {
	set := newReferenceSet()
	for _, m := range cssURLPattern.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[1])
		if strings.HasPrefix(strings.ToLower(v), "data:") {
			continue
		}
		set.add(v, StrategyStyle)
	}
	for _, m := range cssImportPattern.FindAllStringSubmatch(text, -1) {
		set.add(m[1], StrategyStyle)
	}

	out := make([]string, 0, len(set.refs))
	for _, r := range set.refs {
		out = append(out, r.Raw)
	}
	return out
}

// ========== 脚本文本策略 ==========
// 基于正则的启发式匹配,不是JS解析器;误报由同域过滤和扩展名规则兜底

var (
	// (a) 请求调用, 第一个参数为字面量
	scriptCallPatterns = []*regexp.Regexp{
		regexp.MustCompile(`fetch\(\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`\.open\(\s*['"](?:GET|POST)['"]\s*,\s*['"]([^'"]+)['"]`),
		// 只认HTTP客户端接收者, params.get("id") / map.get('k') 之类不算
		regexp.MustCompile(`(?:^|[^\w$])(?:\$|jQuery|\$http|http|client|axios|api|request|superagent)\.(?:get|post|getJSON|ajax|load)\(\s*['"]([^'"]+)['"]`),
	}

	// (b) 形如路径且以已知扩展名结尾的字符串字面量
	scriptPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`['"](/[^'"\s]+\.(?:html|css|js|json|txt|xml))['"]`),
		regexp.MustCompile(`['"](\./[^'"\s]+\.(?:html|css|js|json|txt|xml))['"]`),
		regexp.MustCompile(`['"](\.\.[^'"\s]+\.(?:html|css|js|json|txt|xml))['"]`),
		regexp.MustCompile(`['"]([^'"\s]+/[\w\-]+\.(?:html|css|js|json|txt|xml))['"]`),
	}

	// (c) 对象字面量中表示URL的键
	scriptKeyPattern = regexp.MustCompile(`['"]?(?:url|src|href|file|path)['"]?\s*:\s*['"]([^'"]+)['"]`)

	// (d) 数组字面量
	scriptArrayPattern = regexp.MustCompile(`(?s)=\s*\[(.*?)\]`)
	scriptItemPattern  = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

// ExtractScript 从脚本文本中提取可能的资源引用
func ExtractScript(text string) []string {
	// JSON中常见的 "\/" 转义
	text = strings.ReplaceAll(text, `\/`, `/`)

	set := newReferenceSet()
	for _, p := range scriptCallPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			set.add(m[1], StrategyScript)
		}
	}
	for _, p := range scriptPathPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			set.add(m[1], StrategyScript)
		}
	}
	for _, m := range scriptKeyPattern.FindAllStringSubmatch(text, -1) {
		set.add(m[1], StrategyScript)
	}
	for _, m := range scriptArrayPattern.FindAllStringSubmatch(text, -1) {
		for _, item := range scriptItemPattern.FindAllStringSubmatch(m[1], -1) {
			if containsKnownExtension(item[1]) {
				set.add(item[1], StrategyScript)
			}
		}
	}

	out := make([]string, 0, len(set.refs))
	for _, r := range set.refs {
		if strings.ContainsAny(r.Raw, "<>{}") {
			continue
		}
		out = append(out, r.Raw)
	}
	return out
}

func containsKnownExtension(s string) bool {
	for _, ext := range models.ScriptLiteralExtensions {
		if strings.Contains(s, ext) {
			return true
		}
	}
	return false
}
