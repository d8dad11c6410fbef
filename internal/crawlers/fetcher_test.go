package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/andybalholm/brotli"
)

func testFetchConfig() models.FetchConfig {
	cfg := models.DefaultMirrorConfig().Fetch
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestCollyFetcher_Fetch(t *testing.T) {
	var gotUA, gotCustom string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Mirror-Test")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><a href="/a.html">a</a></html>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	})
	mux.HandleFunc("/compressed.css", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte("a{color:red}"))
		bw.Close()
		w.Header().Set("Content-Type", "text/css")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	})
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte("TAR-PAYLOAD"))
	zw.Close()
	archive := gz.Bytes()
	mux.HandleFunc("/pkg.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Write(archive)
	})
	mux.HandleFunc("/sitemap.xml.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(archive)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	headers := models.StaticHeaders(http.Header{"X-Mirror-Test": []string{"yes"}})
	f := NewCollyFetcher(testFetchConfig(), headers)

	t.Run("正常页面", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if page.StatusCode != 200 || !page.IsSuccess() {
			t.Errorf("StatusCode = %d", page.StatusCode)
		}
		if page.Kind() != models.KindMarkup {
			t.Errorf("Kind() = %v", page.Kind())
		}
		if !bytes.Contains(page.Body, []byte(`href="/a.html"`)) {
			t.Errorf("Body = %s", page.Body)
		}
		if gotUA != models.DefaultUserAgent {
			t.Errorf("User-Agent = %q", gotUA)
		}
		if gotCustom != "yes" {
			t.Errorf("自定义头部未生效: %q", gotCustom)
		}
	})

	t.Run("非2xx仍返回响应", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), server.URL+"/missing")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if page.StatusCode != http.StatusNotFound || page.IsSuccess() {
			t.Errorf("StatusCode = %d", page.StatusCode)
		}
		if string(page.Body) != "not found" {
			t.Errorf("Body = %q", page.Body)
		}
	})

	t.Run("brotli解压", func(t *testing.T) {
		page, err := f.Fetch(context.Background(), server.URL+"/compressed.css")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(page.Body) != "a{color:red}" {
			t.Errorf("Body = %q", page.Body)
		}
	})

	t.Run("gzip类型的二进制资源保持原始字节", func(t *testing.T) {
		for _, p := range []string{"/pkg.tar.gz", "/sitemap.xml.gz"} {
			page, err := f.Fetch(context.Background(), server.URL+p)
			if err != nil {
				t.Fatalf("Fetch(%s) error = %v", p, err)
			}
			if !bytes.Equal(page.Body, archive) {
				t.Errorf("%s 的内容被改写: %q", p, page.Body)
			}
		}
	})

	t.Run("同一URL可重复抓取", func(t *testing.T) {
		if _, err := f.Fetch(context.Background(), server.URL+"/"); err != nil {
			t.Errorf("第二次抓取失败: %v", err)
		}
	})

	t.Run("已取消的上下文", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fetch(ctx, server.URL+"/")
		var fe *models.FetchError
		if !errors.As(err, &fe) {
			t.Errorf("Fetch() error = %v, want FetchError", err)
		}
	})
}

func TestCollyFetcher_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewCollyFetcher(testFetchConfig(), nil).Fetch(context.Background(), addr+"/")
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want FetchError", err)
	}
	if fe.StatusCode != 0 {
		t.Errorf("网络错误不应有状态码: %d", fe.StatusCode)
	}
}

func TestCollyFetcher_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testFetchConfig()
	cfg.Timeout = 100 * time.Millisecond

	_, err := NewCollyFetcher(cfg, nil).Fetch(context.Background(), server.URL+"/slow")
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Fetch() error = %v, want FetchError", err)
	}
	if !fe.Timeout {
		t.Errorf("应识别为超时: %v", err)
	}
}
