package models

import (
	"path"
	"strings"
	"time"
)

const (
	// MaxFileSize 最大文件大小 50MB
	MaxFileSize = 50 * 1024 * 1024
)

// TextExtensions 按文本方式写入的扩展名
var TextExtensions = []string{".html", ".htm", ".css", ".js", ".txt", ".json", ".xml"}

// ScriptLiteralExtensions 脚本字面量启发式识别的扩展名
var ScriptLiteralExtensions = []string{".html", ".css", ".js", ".json", ".txt", ".xml"}

// ContentKind 内容类型
type ContentKind string

const (
	KindMarkup ContentKind = "markup" // HTML
	KindStyle  ContentKind = "style"  // CSS
	KindScript ContentKind = "script" // JavaScript/JSON等脚本文本
	KindOther  ContentKind = "other"  // 其他(图片、字体、媒体)
)

// PageContent 一次抓取的结果,处理完即丢弃
type PageContent struct {
	URL         string // 请求URL
	FinalURL    string // 跟随重定向后的URL,用于解析相对引用
	StatusCode  int    // HTTP状态码
	ContentType string // Content-Type响应头
	Body        []byte // 原始字节(已解压)
}

// IsSuccess 状态码是否为2xx
func (p *PageContent) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Kind 根据Content-Type和URL扩展名判断内容类型
func (p *PageContent) Kind() ContentKind {
	return DetectKind(p.ContentType, p.URL)
}

// DetectKind 判断内容类型,Content-Type优先,其次扩展名
func DetectKind(contentType, rawURL string) ContentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return KindMarkup
	case strings.Contains(ct, "text/css"):
		return KindStyle
	case strings.Contains(ct, "javascript"), strings.Contains(ct, "ecmascript"), strings.Contains(ct, "json"):
		return KindScript
	}

	switch URLExtension(rawURL) {
	case ".html", ".htm":
		if ct == "" {
			return KindMarkup
		}
	case ".css":
		return KindStyle
	case ".js", ".mjs", ".json":
		return KindScript
	}
	return KindOther
}

// URLExtension 返回URL路径的小写扩展名(忽略查询参数和片段)
func URLExtension(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.Index(p, "/"); j >= 0 {
			p = p[j:]
		} else {
			p = "/"
		}
	}
	return strings.ToLower(path.Ext(p))
}

// PageExtensions 视为页面的扩展名,空字符串表示无扩展名
var PageExtensions = []string{"", ".html", ".htm", ".xhtml", ".shtml", ".php", ".asp", ".aspx", ".jsp", ".cgi"}

// IsPageExtension 扩展名是否表示页面
func IsPageExtension(ext string) bool {
	return HasExtension(ext, PageExtensions)
}

// HasExtension 检查扩展名是否在列表中
func HasExtension(ext string, list []string) bool {
	for _, e := range list {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// MirrorFile 已写入磁盘的镜像文件
type MirrorFile struct {
	URL            string    `json:"url"`             // 来源URL
	LocalPath      string    `json:"local_path"`      // 相对镜像根目录的路径
	Size           int64     `json:"size"`            // 文件大小(字节)
	ContentType    string    `json:"content_type"`    // HTTP Content-Type
	Text           bool      `json:"text"`            // 是否以文本方式写入
	DecodeFallback bool      `json:"decode_fallback"` // 文本解码失败后回退为原始字节
	WrittenAt      time.Time `json:"written_at"`      // 写入时间
}
