package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// Fetcher 单次抓取一个URL,无重试
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.PageContent, error)
}

const pageContextKey = "page"

// CollyFetcher 基于Colly同步收集器的抓取器
// 可被多个下载worker并发调用,每次请求使用独立的colly.Context传递结果
type CollyFetcher struct {
	collector      *colly.Collector
	headerProvider models.HeaderProvider
}

// NewCollyFetcher 创建抓取器
func NewCollyFetcher(cfg models.FetchConfig, headerProvider models.HeaderProvider) *CollyFetcher {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = models.DefaultUserAgent
	}

	// 不设置AllowedDomains,同域判断完全由DomainFilter负责
	// 允许重复访问: 下载阶段会对爬取阶段失败的页面再请求一次
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)

	c.WithTransport(rawBodyTransport{&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}})
	c.SetRequestTimeout(cfg.Timeout)

	if cfg.InsecureSkipVerify {
		utils.Debugf("抓取器: TLS证书验证已禁用")
	}

	c.OnResponse(func(r *colly.Response) {
		requestURL := r.Request.URL.String()
		contentType := r.Headers.Get("Content-Type")

		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decoded, err := decompressResponse(encoding, r.Body)
			if err != nil {
				// 解压失败,仍然使用原始body
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", requestURL, encoding, err)
			} else {
				body = decoded
			}
		}

		r.Ctx.Put(pageContextKey, &models.PageContent{
			FinalURL:    requestURL,
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Body:        body,
		})
	})

	return &CollyFetcher{
		collector:      c,
		headerProvider: headerProvider,
	}
}

// rawBodyTransport 没有Content-Encoding时标记响应为已解压
// colly会按Content-Type含gzip或路径以.xml.gz结尾自行解压,这会改写 .tar.gz 等二进制资源
type rawBodyTransport struct {
	base http.RoundTripper
}

func (t rawBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Encoding") == "" {
		resp.Uncompressed = true
	}
	return resp, nil
}

// Fetch 发起一次GET请求
// 只要收到响应(包括非2xx)就返回PageContent;网络错误和超时返回 *models.FetchError
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (*models.PageContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.FetchError{URL: rawURL, Cause: err}
	}

	hdr := make(http.Header)
	if f.headerProvider != nil {
		headers, err := f.headerProvider.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
		} else {
			for name, values := range headers {
				if len(values) > 0 {
					hdr.Set(name, values[0])
				}
			}
		}
	}

	collyCtx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, rawURL, nil, collyCtx, hdr)

	page, _ := collyCtx.GetAny(pageContextKey).(*models.PageContent)
	if page != nil {
		page.URL = rawURL
		return page, nil
	}

	if err == nil {
		err = fmt.Errorf("未收到响应")
	}
	return nil, &models.FetchError{URL: rawURL, Timeout: isTimeout(err), Cause: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

// decompressResponse 解压响应体
// gzip已由colly的传输层处理,这里只处理 deflate 和 br
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "deflate":
		// 多数服务器发送zlib封装的deflate,少数发送裸deflate
		var reader io.ReadCloser
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			reader = zr
		} else {
			reader = flate.NewReader(bytes.NewReader(body))
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "gzip", "x-gzip", "identity", "":
		return body, nil

	default:
		// 未知编码,仍然返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
