package main

import (
	"sync"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// progressSink 把核心事件渲染为日志和下载进度条
type progressSink struct {
	mu      sync.Mutex
	showBar bool
	bar     *progressbar.ProgressBar
}

func newProgressSink(showBar bool) *progressSink {
	return &progressSink{showBar: showBar}
}

// Emit 实现 models.EventSink
func (p *progressSink) Emit(e models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case models.EventSessionStarted:
		utils.Debugf("会话 %s 开始: %s", e.Detail, e.URL)
	case models.EventPageCrawled:
		utils.Infof("[深度 %d] %s (%s)", e.Depth, e.URL, e.Detail)
	case models.EventLinkedScanned:
		utils.Debugf("已扫描 %s (%s)", e.URL, e.Detail)
	case models.EventFetchFailed, models.EventWriteFailed:
		utils.Debugf("失败: %s", e.Detail)
	case models.EventDecodeFailure:
		utils.Warnf("非UTF-8文本,按原始字节保存: %s", e.URL)
	case models.EventRewriteFailed:
		utils.Warnf("链接改写失败 [%s]: %s", e.URL, e.Detail)
	case models.EventProgress:
		p.progress(e)
	case models.EventPhaseCompleted:
		p.phaseCompleted(e)
	}
}

func (p *progressSink) progress(e models.Event) {
	if !p.showBar {
		utils.Infof("下载进度: %d/%d", e.Completed, e.Total)
		return
	}
	if p.bar == nil {
		p.bar = utils.NewProgressBar(e.Total, "下载资源")
	}
	// 多个worker上报的进度可能乱序到达,进度条只前进不后退
	if int64(e.Completed) <= p.bar.State().CurrentNum {
		return
	}
	_ = p.bar.Set(e.Completed)
}

func (p *progressSink) phaseCompleted(e models.Event) {
	switch e.Detail {
	case models.PhaseCrawl:
		utils.Infof("爬取阶段完成, 共发现 %d 个资源", e.Total)
	case models.PhaseDownload:
		if p.bar != nil {
			_ = p.bar.Finish()
			p.bar = nil
		}
	case models.PhaseRewrite:
		utils.Infof("链接改写完成, 共 %d 个页面", e.Completed)
	}
}
