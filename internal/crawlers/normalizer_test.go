package crawlers

import (
	"errors"
	"net/url"
	"testing"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return u
}

func TestNormalizeReference(t *testing.T) {
	page := mustParse(t, "https://example.com/docs/guide/intro.html")
	base := mustParse(t, "https://example.com/")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"协议相对", "//example.com/lib.js", "https://example.com/lib.js"},
		{"协议相对其他主机", "//cdn.example.net/x.js", "https://cdn.example.net/x.js"},
		{"根相对按站点根解析", "/style.css", "https://example.com/style.css"},
		{"点相对", "./img/a.png", "https://example.com/docs/guide/img/a.png"},
		{"上级相对", "../api.html", "https://example.com/docs/api.html"},
		{"裸相对", "next.html", "https://example.com/docs/guide/next.html"},
		{"已带协议原样返回", "https://example.com/a?b=1", "https://example.com/a?b=1"},
		{"去除片段", "other.html#top", "https://example.com/docs/guide/other.html"},
		{"去除两侧空白", "  /a.js \n", "https://example.com/a.js"},
		{"主机名转小写", "https://EXAMPLE.com/A.js", "https://example.com/A.js"},
		{"空路径补斜杠", "https://example.com", "https://example.com/"},
		{"保留查询参数", "list.html?page=2", "https://example.com/docs/guide/list.html?page=2"},
		{"非HTTP协议原样返回", "mailto:someone@example.com", "mailto:someone@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeReference(tt.raw, page, base)
			if err != nil {
				t.Fatalf("NormalizeReference(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeReference(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeReference_Failures(t *testing.T) {
	page := mustParse(t, "https://example.com/a/b.html")
	base := mustParse(t, "https://example.com/")

	tests := []struct {
		name string
		raw  string
	}{
		{"空字符串", ""},
		{"仅空白", "   "},
		{"非法转义", "/a%zz"},
		{"缺少主机名", "http:///path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeReference(tt.raw, page, base)
			var re *models.ResolutionError
			if !errors.As(err, &re) {
				t.Errorf("NormalizeReference(%q) error = %v, want ResolutionError", tt.raw, err)
			}
		})
	}
}

func TestNormalizeSeed(t *testing.T) {
	got, u, err := NormalizeSeed("https://Example.com#intro")
	if err != nil {
		t.Fatalf("NormalizeSeed() error = %v", err)
	}
	if got != "https://example.com/" {
		t.Errorf("NormalizeSeed() = %q", got)
	}
	if u.Host != "example.com" {
		t.Errorf("Host = %q", u.Host)
	}
}

func TestDomainFilter(t *testing.T) {
	f := NewDomainFilter("example.com")

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"同主机", "https://example.com/x.js", true},
		{"同主机http", "http://example.com/", true},
		{"其他域名", "https://other-domain.com/x.js", false},
		{"子域名不折叠", "https://www.example.com/", false},
		{"端口不同", "https://example.com:8443/", false},
		{"非HTTP协议", "mailto:a@example.com", false},
		{"非法URL", "://", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Allows(tt.url); got != tt.want {
				t.Errorf("Allows(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
