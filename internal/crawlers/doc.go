// Package crawlers 实现网站镜像的爬取与资源解析核心
//
// # 概述
//
// 一次镜像运行对应一个 CrawlSession,依次经过三个阶段:
//
//  1. 爬取: Scheduler 从种子开始按广度优先抓取同域页面,提取引用,
//     按准入规则加入资源集合并入队
//  2. 下载: Downloader 以固定数量的worker下载资源集合中尚未写入的资源
//  3. 改写: LinkRewriter 把已保存HTML中的链接替换为本地相对路径
//
// # 核心组件
//
// ## URL规范化与过滤
//
// NormalizeReference 把页面中的原始引用解析为去掉片段的绝对URL:
//
//	"//cdn.example.com/a.js"  -> 使用站点协议
//	"/about"                  -> 相对站点根
//	"./a.html", "../b.html"   -> 相对当前页面
//	"https://example.com/x"   -> 原样返回
//
// DomainFilter 只接受与会话目标主机完全相同的 http/https URL。
//
// ## PathMapper
//
// 把URL映射为镜像根目录下的相对路径,同一会话内同一URL总得到同一路径:
//
//	https://example.com/           -> index.html
//	https://example.com/blog/      -> blog/index.html
//	https://example.com/about      -> about.html
//	https://example.com/a.css?v=2  -> a.css
//
// 不同URL映射到同一路径时追加 _1, _2 后缀。
//
// ## 引用提取
//
// Extract 按内容类型组合三种策略:HTML树遍历、CSS的url()/@import、
// 脚本中的请求调用与路径字面量。脚本策略是尽力而为的正则匹配。
//
// ## 抓取与写入
//
// CollyFetcher 每次发起一个GET请求,不重试;非2xx响应仍然返回,由调用方判定。
// ResourceWriter 把响应体写到映射路径,文本内容不是合法UTF-8时按原始字节保存。
//
// ## Frontier 与 URLSet
//
// Frontier 是先进先出的待爬队列,同一URL只会入队一次。
// URLSet 的 Add 是原子的测试并设置操作,多个worker可并发调用。
//
// # 并发模型
//
// 爬取阶段单线程运行,相邻请求之间由 rate.Limiter 保证礼貌间隔。
// 下载阶段通过 errgroup 管理生产者和固定数量的worker,channel有界,
// 满时生产者阻塞。WorkerBudget 在运行开始时根据可用内存确定worker数量。
//
//	session, _ := NewCrawlSession("https://example.com/", "output/example.com_website")
//	writer := NewResourceWriter(session.RootDir, session.Mapper, events)
//	fetcher := NewCollyFetcher(cfg.Fetch, headers)
//
//	if err := NewScheduler(session, fetcher, writer, cfg.Crawl, events).Run(ctx); err != nil {
//	    return err // 种子不可达或已取消
//	}
//	workers := NewWorkerBudget(cfg.Download.SafetyReserveMemory).Workers(cfg.Download.Workers)
//	stats, err := NewDownloader(session, fetcher, writer, cfg.Download, workers, events).Run(ctx)
//
// # 错误处理
//
// 单个资源的抓取或写入失败只记录到会话并发出事件,不会中断运行。
// 只有种子抓取失败(models.ErrSeedUnreachable)和ctx取消会从 Run 返回。
package crawlers
