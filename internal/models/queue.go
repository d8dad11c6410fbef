package models

// FrontierEntry 表示爬取队列中的一个URL项
// 用途:
//   - 按FIFO顺序出队,实现广度优先
//   - 子页面深度为父页面深度+1
type FrontierEntry struct {
	// URL 规范化后的绝对URL
	URL string

	// Depth URL的深度层级
	//   - 0: 种子URL
	//   - 1: 从种子页面发现的链接
	//   - 以此类推...
	Depth int

	// SourceURL 发现此URL的源页面(可选,用于调试)
	SourceURL string
}

// EntryState 队列项的状态
type EntryState string

const (
	EntryQueued   EntryState = "queued"    // 已入队
	EntryInFlight EntryState = "in_flight" // 抓取中
	EntryExpanded EntryState = "expanded"  // 已解析并展开链接
	EntryLeaf     EntryState = "leaf"      // 非页面/抓取失败/超出深度
)
