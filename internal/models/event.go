package models

import "time"

// EventKind 事件类型
type EventKind string

const (
	EventSessionStarted  EventKind = "session_started"  // 会话开始
	EventPageCrawled     EventKind = "page_crawled"     // 页面已抓取并展开
	EventPageLeaf        EventKind = "page_leaf"        // 已抓取但不展开(非HTML)
	EventEntryDiscarded  EventKind = "entry_discarded"  // 出队后丢弃(已访问或超深度)
	EventURLEnqueued     EventKind = "url_enqueued"     // 新URL入队
	EventAssetDiscovered EventKind = "asset_discovered" // 新资源加入资源集合
	EventLinkedScanned   EventKind = "linked_scanned"   // 外链CSS/JS已扫描
	EventFetchFailed     EventKind = "fetch_failed"     // 抓取失败
	EventWriteFailed     EventKind = "write_failed"     // 写入失败
	EventDecodeFailure   EventKind = "decode_failure"   // 文本解码失败,已回退为原始字节
	EventAssetDownloaded EventKind = "asset_downloaded" // 资源已下载
	EventAssetSkipped    EventKind = "asset_skipped"    // 按扩展名跳过
	EventProgress        EventKind = "progress"         // 下载进度
	EventPageRewritten   EventKind = "page_rewritten"   // 页面链接已重写
	EventRewriteFailed   EventKind = "rewrite_failed"   // 链接重写失败
	EventPhaseCompleted  EventKind = "phase_completed"  // 阶段完成
)

// 阶段名称
const (
	PhaseCrawl    = "crawl"
	PhaseDownload = "download"
	PhaseRewrite  = "rewrite"
)

// Event 核心向展示层发出的结构化事件
type Event struct {
	Kind      EventKind
	URL       string
	Detail    string
	Depth     int
	Completed int // 仅 EventProgress
	Total     int // 仅 EventProgress
	Time      time.Time
}

// EventSink 事件接收者,实现方需要并发安全(下载阶段多个worker同时发出)
type EventSink interface {
	Emit(Event)
}

// EventFunc 函数适配器
type EventFunc func(Event)

// Emit 实现EventSink
func (f EventFunc) Emit(e Event) {
	if f != nil {
		f(e)
	}
}

// NopSink 丢弃所有事件
var NopSink EventSink = EventFunc(nil)
