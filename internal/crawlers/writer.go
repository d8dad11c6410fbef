package crawlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

// textMarkers Content-Type中表示文本内容的标记
var textMarkers = []string{"text/", "javascript", "json", "xml"}

// ResourceWriter 将抓取到的字节写入镜像目录
type ResourceWriter struct {
	rootDir string
	mapper  *PathMapper
	events  models.EventSink
}

// NewResourceWriter 创建写入器
func NewResourceWriter(rootDir string, mapper *PathMapper, events models.EventSink) *ResourceWriter {
	if events == nil {
		events = models.NopSink
	}
	return &ResourceWriter{rootDir: rootDir, mapper: mapper, events: events}
}

// IsTextual 判断是否按文本方式写入
func IsTextual(contentType, localPath string) bool {
	ct := strings.ToLower(contentType)
	for _, marker := range textMarkers {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	return models.HasExtension(strings.ToLower(filepath.Ext(localPath)), models.TextExtensions)
}

// Write 分配路径并写入文件
// 文本内容要求为合法UTF-8,否则回退为原始字节写入并发出 DecodeFailure 事件
func (w *ResourceWriter) Write(absURL string, body []byte, contentType string) (*models.MirrorFile, error) {
	rel, err := w.mapper.Assign(absURL)
	if err != nil {
		return nil, &models.WriteError{URL: absURL, Cause: err}
	}

	full := filepath.Join(w.rootDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, &models.WriteError{URL: absURL, Path: rel, Cause: fmt.Errorf("创建目录失败: %w", err)}
	}

	file := &models.MirrorFile{
		URL:         absURL,
		LocalPath:   rel,
		Size:        int64(len(body)),
		ContentType: contentType,
	}

	if IsTextual(contentType, rel) {
		if utf8.Valid(body) {
			file.Text = true
		} else {
			file.DecodeFallback = true
			w.events.Emit(models.Event{
				Kind:   models.EventDecodeFailure,
				URL:    absURL,
				Detail: "非UTF-8文本,按原始字节写入",
				Time:   time.Now(),
			})
		}
	}

	// 抓取器已将声明了字符集的文本转为UTF-8,此处直接落盘
	if err := os.WriteFile(full, body, 0644); err != nil {
		return nil, &models.WriteError{URL: absURL, Path: rel, Cause: err}
	}

	file.WrittenAt = time.Now()
	return file, nil
}
