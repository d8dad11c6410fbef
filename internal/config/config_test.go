package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试配置失败: %v", err)
	}
}

func TestLoadConfig_Template(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.yaml")

	created, err := WriteTemplate(path, false)
	if err != nil || !created {
		t.Fatalf("WriteTemplate() = %v, %v", created, err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.File != path {
		t.Errorf("File = %s, want %s", cfg.File, path)
	}

	// 模板与代码中的默认值一致
	if got, want := cfg.MirrorConfig(), models.DefaultMirrorConfig(); !reflect.DeepEqual(got, want) {
		t.Errorf("模板配置与默认配置不一致:\n got = %+v\nwant = %+v", got, want)
	}
	if cfg.Headers["accept-language"] == "" {
		t.Errorf("模板头部未加载: %v", cfg.Headers)
	}
	if !cfg.Output.WriteReport || cfg.Output.BaseDir != "output" {
		t.Errorf("Output = %+v", cfg.Output)
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `crawl:
  max_depth: 5
  politeness_delay: 1s
fetch:
  timeout: 30s
download:
  workers: 2
mirror:
  rewrite_links: false
logging:
  level: debug
headers:
  X-Custom: "test value"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	mc := cfg.MirrorConfig()
	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"深度覆盖", mc.Crawl.MaxDepth, 5},
		{"间隔覆盖", mc.Crawl.PolitenessDelay, time.Second},
		{"查询深度保持默认", mc.Crawl.MaxQueryDepth, 1},
		{"超时覆盖", mc.Fetch.Timeout, 30 * time.Second},
		{"UA保持默认", mc.Fetch.UserAgent, models.DefaultUserAgent},
		{"并发数覆盖", mc.Download.Workers, 2},
		{"进度间隔保持默认", mc.Download.ProgressEvery, 10},
		{"关闭链接改写", mc.RewriteLinks, false},
		{"日志级别", cfg.LogConfig().Level, "debug"},
		{"日志目录保持默认", cfg.LogConfig().LogDir, "logs"},
		{"自定义头部", cfg.Headers["x-custom"], "test value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	malformed := filepath.Join(dir, "bad.yaml")
	writeFile(t, malformed, "crawl: [unclosed\n")

	oversized := filepath.Join(dir, "big.yaml")
	writeFile(t, oversized, "# "+strings.Repeat("x", MaxConfigFileSize))

	tests := []struct {
		name string
		path string
	}{
		{"指定文件不存在", filepath.Join(dir, "missing.yaml")},
		{"YAML格式错误", malformed},
		{"文件过大", oversized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path)
			var ce *models.ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("LoadConfig() error = %v, want ConfigError", err)
			}
		})
	}
}

func TestLoadConfig_SearchPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "configs"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "configs", "config.yaml"), "crawl:\n  max_depth: 7\n")

	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Crawl.MaxDepth != 7 {
		t.Errorf("应加载 ./configs/config.yaml, MaxDepth = %d", cfg.Crawl.MaxDepth)
	}
}

func TestWriteTemplate_NoOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "crawl:\n  max_depth: 1\n")

	created, err := WriteTemplate(path, false)
	if err != nil || created {
		t.Fatalf("WriteTemplate() = %v, %v", created, err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "max_depth: 1") {
		t.Error("已存在的配置文件不应被覆盖")
	}

	if created, _ := WriteTemplate(path, true); !created {
		t.Error("overwrite时应重新生成")
	}
}
