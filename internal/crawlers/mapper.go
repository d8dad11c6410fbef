package crawlers

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
)

// PathMapper URL到镜像相对路径的映射器
// 同一会话内同一URL始终得到同一路径;不同URL落到同一路径时追加 _N 后缀
type PathMapper struct {
	mu     sync.Mutex
	byURL  map[string]string // URL -> 已分配路径
	owners map[string]string // 已分配路径 -> URL
}

// NewPathMapper 创建路径映射器
func NewPathMapper() *PathMapper {
	return &PathMapper{
		byURL:  make(map[string]string),
		owners: make(map[string]string),
	}
}

// RawPath 计算未消歧的本地路径(纯函数)
//
//	https://example.com        -> index.html
//	https://example.com/blog/  -> blog/index.html
//	https://example.com/about  -> about.html
//	https://example.com/a/b.js -> a/b.js
//
// 查询参数被忽略,点段会被清理,结果不会逃出镜像根目录
func RawPath(absURL string) (string, error) {
	u, err := url.Parse(absURL)
	if err != nil {
		return "", fmt.Errorf("URL格式无效: %w", err)
	}

	p := u.Path
	dirLike := strings.HasSuffix(p, "/")
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")

	switch {
	case cleaned == "":
		return "index.html", nil
	case dirLike:
		return cleaned + "/index.html", nil
	case path.Ext(cleaned) == "":
		return cleaned + ".html", nil
	default:
		return cleaned, nil
	}
}

// Assign 为URL分配无冲突的本地路径
func (m *PathMapper) Assign(absURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.byURL[absURL]; ok {
		return p, nil
	}

	raw, err := RawPath(absURL)
	if err != nil {
		return "", err
	}

	candidate := raw
	if _, taken := m.owners[candidate]; taken {
		ext := path.Ext(raw)
		stem := strings.TrimSuffix(raw, ext)
		for i := 1; ; i++ {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
			if _, taken := m.owners[candidate]; !taken {
				break
			}
		}
	}

	m.byURL[absURL] = candidate
	m.owners[candidate] = absURL
	return candidate, nil
}

// Lookup 查询已分配的路径
func (m *PathMapper) Lookup(absURL string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byURL[absURL]
	return p, ok
}
