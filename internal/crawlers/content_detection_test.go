package crawlers

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/andybalholm/brotli"
)

// TestIsTextual 测试文本/二进制写入判定
func TestIsTextual(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		localPath   string
		expected    bool
	}{
		{"HTML类型", "text/html; charset=utf-8", "index.html", true},
		{"JS类型", "application/javascript", "app", true},
		{"JSON类型", "application/json", "data.bin", true},
		{"XML类型", "application/xml", "feed", true},
		{"SVG图片按XML文本处理", "image/svg+xml", "logo.svg", true},
		{"扩展名兜底", "application/octet-stream", "style.css", true},
		{"扩展名大小写", "", "README.TXT", true},
		{"PNG图片", "image/png", "a.png", false},
		{"字体", "font/woff2", "a.woff2", false},
		{"无类型无扩展名", "", "blob", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTextual(tt.contentType, tt.localPath); got != tt.expected {
				t.Errorf("IsTextual(%q, %q) = %v, want %v", tt.contentType, tt.localPath, got, tt.expected)
			}
		})
	}
}

// TestDecompressResponse 测试响应体解压
func TestDecompressResponse(t *testing.T) {
	plain := []byte("body { background: url(/img/bg.png); }")

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write(plain)
	bw.Close()

	var zl bytes.Buffer
	zw := zlib.NewWriter(&zl)
	zw.Write(plain)
	zw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
		wantErr  bool
	}{
		{"brotli", "br", br.Bytes(), false},
		{"zlib封装的deflate", "deflate", zl.Bytes(), false},
		{"gzip由传输层处理", "gzip", plain, false},
		{"无编码", "", plain, false},
		{"未知编码原样返回", "compress", plain, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decompressResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, plain) {
				t.Errorf("decompressResponse() = %q, want %q", got, plain)
			}
		})
	}
}
