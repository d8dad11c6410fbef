package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// MirrorStats 镜像任务统计
type MirrorStats struct {
	VisitedURLs     int     `json:"visited_urls"`     // 爬取阶段已访问URL数
	AssetURLs       int     `json:"asset_urls"`       // 发现的资源URL总数
	CrawledPages    int     `json:"crawled_pages"`    // 已展开的页面数
	DownloadedFiles int     `json:"downloaded_files"` // 已写入磁盘的文件数
	FailedFiles     int     `json:"failed_files"`     // 失败数
	SkippedFiles    int     `json:"skipped_files"`    // 按扩展名跳过的文件数
	RewrittenPages  int     `json:"rewritten_pages"`  // 已重写链接的页面数
	TotalSize       int64   `json:"total_size"`       // 总大小(字节)
	Duration        float64 `json:"duration"`         // 总耗时(秒)
}

// CrawlConfig 爬取阶段配置
type CrawlConfig struct {
	MaxDepth           int           `json:"max_depth" mapstructure:"max_depth"`                     // 最大爬取深度 (默认:3)
	MaxQueryDepth      int           `json:"max_query_depth" mapstructure:"max_query_depth"`         // 带查询参数URL允许入队的最大父页面深度 (默认:1)
	PolitenessDelay    time.Duration `json:"politeness_delay" mapstructure:"politeness_delay"`       // 相邻两次抓取的间隔 (默认:300ms)
	ExcludedExtensions []string      `json:"excluded_extensions" mapstructure:"excluded_extensions"` // 不进入队列的静态资源扩展名
	ScanLinkedAssets   bool          `json:"scan_linked_assets" mapstructure:"scan_linked_assets"`   // 是否扫描外链CSS/JS中的引用
}

// FetchConfig 抓取配置
type FetchConfig struct {
	Timeout            time.Duration `json:"timeout" mapstructure:"timeout"`                           // 单次请求超时 (默认:15s)
	UserAgent          string        `json:"user_agent" mapstructure:"user_agent"`                     // 客户端标识
	MaxBodySize        int           `json:"max_body_size" mapstructure:"max_body_size"`               // 响应体上限(字节),0表示不限
	InsecureSkipVerify bool          `json:"insecure_skip_verify" mapstructure:"insecure_skip_verify"` // 跳过TLS证书验证
}

// DownloadConfig 下载阶段配置
type DownloadConfig struct {
	Workers             int      `json:"workers" mapstructure:"workers"`                             // 固定并发数 (默认:8)
	ProgressEvery       int      `json:"progress_every" mapstructure:"progress_every"`               // 每完成N个发出一次进度事件
	SkipExtensions      []string `json:"skip_extensions" mapstructure:"skip_extensions"`             // 不下载的扩展名(大体积媒体)
	SafetyReserveMemory int      `json:"safety_reserve_memory" mapstructure:"safety_reserve_memory"` // 可用内存低于该值(MB)时减半并发
}

// MirrorConfig 单次镜像运行的完整配置
type MirrorConfig struct {
	Crawl        CrawlConfig    `json:"crawl" mapstructure:"crawl"`
	Fetch        FetchConfig    `json:"fetch" mapstructure:"fetch"`
	Download     DownloadConfig `json:"download" mapstructure:"download"`
	RewriteLinks bool           `json:"rewrite_links" mapstructure:"rewrite_links"`
}

// DefaultExcludedExtensions 不作为页面爬取的扩展名
var DefaultExcludedExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp", ".bmp",
	".pdf", ".zip", ".gz", ".tar", ".mp4", ".mp3", ".webm", ".avi", ".mov", ".mkv",
	".woff", ".woff2", ".ttf", ".eot", ".otf", ".map",
}

// DefaultSkipExtensions 下载阶段跳过的扩展名
var DefaultSkipExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}

// DefaultMirrorConfig 默认配置
func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		Crawl: CrawlConfig{
			MaxDepth:           3,
			MaxQueryDepth:      1,
			PolitenessDelay:    300 * time.Millisecond,
			ExcludedExtensions: append([]string(nil), DefaultExcludedExtensions...),
			ScanLinkedAssets:   true,
		},
		Fetch: FetchConfig{
			Timeout:     15 * time.Second,
			UserAgent:   DefaultUserAgent,
			MaxBodySize: MaxFileSize,
		},
		Download: DownloadConfig{
			Workers:             8,
			ProgressEvery:       10,
			SkipExtensions:      append([]string(nil), DefaultSkipExtensions...),
			SafetyReserveMemory: 256,
		},
		RewriteLinks: true,
	}
}

// Validate 验证配置
func (c *MirrorConfig) Validate() error {
	if c.Crawl.MaxDepth < 0 || c.Crawl.MaxDepth > 10 {
		return fmt.Errorf("深度必须在0-10之间")
	}
	if c.Crawl.MaxQueryDepth < 0 {
		return fmt.Errorf("查询参数深度不能为负数")
	}
	if c.Crawl.PolitenessDelay < 0 || c.Crawl.PolitenessDelay > 10*time.Second {
		return fmt.Errorf("抓取间隔必须在0-10秒之间")
	}
	if c.Fetch.Timeout <= 0 || c.Fetch.Timeout > 120*time.Second {
		return fmt.Errorf("请求超时必须在0-120秒之间")
	}
	if c.Fetch.MaxBodySize < 0 {
		return fmt.Errorf("响应体上限不能为负数")
	}
	if c.Download.Workers < 1 || c.Download.Workers > 100 {
		return fmt.Errorf("并发数必须在1-100之间")
	}
	return nil
}

// MirrorTask 镜像任务
type MirrorTask struct {
	// 基本信息
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	TargetURL   string     `json:"target_url"`             // 种子URL
	Domain      string     `json:"domain"`                 // 目标主机
	RootDir     string     `json:"root_dir"`               // 镜像根目录
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config MirrorConfig `json:"config"`
	Status TaskStatus   `json:"status"`
	Stats  MirrorStats  `json:"stats"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewMirrorTask 创建新任务
func NewMirrorTask(targetURL string, rootDir string, config MirrorConfig) (*MirrorTask, error) {
	if err := ValidateURL(targetURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(targetURL)

	return &MirrorTask{
		ID:        generateID(),
		TargetURL: targetURL,
		Domain:    parsed.Host,
		RootDir:   rootDir,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
	}, nil
}

// DefaultFolderName 根据主机名生成默认输出目录名
// 例如: www.example.com -> example.com_website
func DefaultFolderName(targetURL string) string {
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" {
		return "downloaded_website"
	}
	host := strings.TrimPrefix(parsed.Host, "www.")
	host = strings.ReplaceAll(host, ":", "_")
	return host + "_website"
}
