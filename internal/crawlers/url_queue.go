package crawlers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

// URLSet 并发安全的URL集合
// Add 为测试并设置语义: 只有首次加入的调用方得到 true
type URLSet struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

// NewURLSet 创建URL集合
func NewURLSet() *URLSet {
	return &URLSet{urls: make(map[string]struct{})}
}

// Add 加入集合,若此前不存在返回true
func (s *URLSet) Add(u string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[u]; ok {
		return false
	}
	s.urls[u] = struct{}{}
	return true
}

// Contains 检查是否存在
func (s *URLSet) Contains(u string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.urls[u]
	return ok
}

// Len 集合大小
func (s *URLSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.urls)
}

// Snapshot 返回排序后的副本
func (s *URLSet) Snapshot() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.urls))
	for u := range s.urls {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Frontier 广度优先爬取队列
// 严格FIFO;queued记录曾经入队的URL,避免同一URL重复入队
// 爬取阶段单线程访问,锁只为 PendingCount 观测调用准备
type Frontier struct {
	mu      sync.Mutex
	entries []models.FrontierEntry
	head    int
	queued  map[string]struct{}
}

// NewFrontier 创建爬取队列
func NewFrontier() *Frontier {
	return &Frontier{queued: make(map[string]struct{})}
}

// Push 入队,URL已入过队时返回false
func (f *Frontier) Push(entry models.FrontierEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.Depth < 0 {
		return false, fmt.Errorf("深度不能为负数: %d", entry.Depth)
	}
	if _, ok := f.queued[entry.URL]; ok {
		return false, nil
	}
	f.queued[entry.URL] = struct{}{}
	f.entries = append(f.entries, entry)
	return true, nil
}

// Pop 取出最早入队的项
func (f *Frontier) Pop() (models.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.head >= len(f.entries) {
		return models.FrontierEntry{}, false
	}
	entry := f.entries[f.head]
	f.entries[f.head] = models.FrontierEntry{}
	f.head++

	// 已消费部分过半时压缩底层数组
	if f.head > 1024 && f.head*2 > len(f.entries) {
		f.entries = append([]models.FrontierEntry(nil), f.entries[f.head:]...)
		f.head = 0
	}
	return entry, true
}

// PendingCount 待处理数量
func (f *Frontier) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries) - f.head
}
