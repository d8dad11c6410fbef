package crawlers

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

// CrawlSession 单次镜像运行的全部状态
// 每次运行新建,运行结束即丢弃,不跨进程持久化
type CrawlSession struct {
	ID         string
	SeedURL    string   // 规范化后的种子URL
	Base       *url.URL // 站点根, "/path" 形式的引用相对它解析
	TargetHost string
	RootDir    string

	Visited    *URLSet // 爬取阶段已抓取的URL
	Assets     *URLSet // 发现的全部同域资源
	Downloaded *URLSet // 已成功写入磁盘的资源

	Frontier *Frontier
	Mapper   *PathMapper
	Filter   DomainFilter

	mu       sync.Mutex
	files    []models.FileInfo
	written  []models.MirrorFile
	failures []models.FailedFileInfo
}

// NewCrawlSession 创建会话
func NewCrawlSession(seed string, rootDir string) (*CrawlSession, error) {
	normalized, seedURL, err := NormalizeSeed(seed)
	if err != nil {
		return nil, err
	}
	if seedURL.Scheme != "http" && seedURL.Scheme != "https" {
		return nil, fmt.Errorf("种子URL必须是HTTP或HTTPS协议: %s", seed)
	}

	base := &url.URL{Scheme: seedURL.Scheme, Host: seedURL.Host, Path: "/"}

	return &CrawlSession{
		ID:         models.NewSessionID(),
		SeedURL:    normalized,
		Base:       base,
		TargetHost: seedURL.Host,
		RootDir:    rootDir,
		Visited:    NewURLSet(),
		Assets:     NewURLSet(),
		Downloaded: NewURLSet(),
		Frontier:   NewFrontier(),
		Mapper:     NewPathMapper(),
		Filter:     NewDomainFilter(seedURL.Host),
	}, nil
}

// RecordFile 记录已写入的文件
func (s *CrawlSession) RecordFile(file *models.MirrorFile, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, *file)
	s.files = append(s.files, models.FileInfo{
		URL:          file.URL,
		FilePath:     file.LocalPath,
		Size:         file.Size,
		Phase:        phase,
		DownloadedAt: time.Now(),
	})
}

// RecordFailure 记录失败
func (s *CrawlSession) RecordFailure(info models.FailedFileInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, info)
}

// Written 已写入文件的副本
func (s *CrawlSession) Written() []models.MirrorFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MirrorFile(nil), s.written...)
}

// Files 报告用的文件列表
func (s *CrawlSession) Files() []models.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FileInfo(nil), s.files...)
}

// Failures 失败列表
func (s *CrawlSession) Failures() []models.FailedFileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.FailedFileInfo(nil), s.failures...)
}

// TotalSize 已写入字节数
func (s *CrawlSession) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, f := range s.written {
		total += f.Size
	}
	return total
}

// failureFromError 将抓取/写入错误转换为报告记录
func failureFromError(rawURL string, err error, phase string) models.FailedFileInfo {
	info := models.FailedFileInfo{URL: rawURL, ErrorMsg: err.Error(), Phase: phase}
	switch e := err.(type) {
	case *models.FetchError:
		info.ErrorType = e.Type()
		info.StatusCode = e.StatusCode
	case *models.WriteError:
		info.ErrorType = "write"
	default:
		info.ErrorType = "unknown"
	}
	return info
}
