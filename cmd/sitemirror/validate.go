package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/config"
	"github.com/RecoveryAshes/sitemirror/internal/core"
	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/spf13/cobra"
)

// mirrorFlags 镜像相关的命令行参数
type mirrorFlags struct {
	targetURL  string
	urlFile    string
	depth      int
	queryDepth int
	delay      time.Duration
	timeout    time.Duration
	workers    int
	outputDir  string
	folderName string

	noRewrite    bool
	noReport     bool
	noScanAssets bool
	insecure     bool
	noProgress   bool

	batchDelay      time.Duration
	continueOnError bool
}

// ValidateFlags 验证命令行标志
func ValidateFlags(f *mirrorFlags) error {
	if f.targetURL != "" && f.urlFile != "" {
		return fmt.Errorf("--url 和 --url-file 不能同时使用")
	}

	if f.targetURL != "" {
		normalized, err := models.NormalizeSeedURL(f.targetURL)
		if err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
		f.targetURL = normalized
	}

	if f.depth < 0 || f.depth > 10 {
		return fmt.Errorf("爬取深度必须在0-10之间,当前值: %d", f.depth)
	}
	if f.queryDepth < 0 {
		return fmt.Errorf("查询参数深度不能为负数,当前值: %d", f.queryDepth)
	}
	if f.delay < 0 || f.delay > 10*time.Second {
		return fmt.Errorf("抓取间隔必须在0-10秒之间,当前值: %s", f.delay)
	}
	if f.timeout <= 0 || f.timeout > 120*time.Second {
		return fmt.Errorf("请求超时必须在0-120秒之间,当前值: %s", f.timeout)
	}
	if f.workers < 1 || f.workers > 100 {
		return fmt.Errorf("并发数必须在1-100之间,当前值: %d", f.workers)
	}
	if f.batchDelay < 0 {
		return fmt.Errorf("批量延迟不能为负数,当前值: %s", f.batchDelay)
	}

	if f.folderName != "" {
		if f.urlFile != "" {
			return fmt.Errorf("批量模式下不能指定 --name,每个URL使用各自的目录")
		}
		if strings.ContainsAny(f.folderName, `/\`) || f.folderName == "." || f.folderName == ".." {
			return fmt.Errorf("无效的目录名: %s", f.folderName)
		}
	}

	return nil
}

// buildMirrorOptions 合并配置文件与命令行参数
// 只有显式指定的命令行参数才覆盖配置文件
func buildMirrorOptions(cmd *cobra.Command, f *mirrorFlags, app *config.Config) core.MirrorOptions {
	cfg := app.MirrorConfig()
	changed := cmd.Flags().Changed

	if changed("depth") {
		cfg.Crawl.MaxDepth = f.depth
	}
	if changed("query-depth") {
		cfg.Crawl.MaxQueryDepth = f.queryDepth
	}
	if changed("delay") {
		cfg.Crawl.PolitenessDelay = f.delay
	}
	if changed("no-scan-assets") {
		cfg.Crawl.ScanLinkedAssets = !f.noScanAssets
	}
	if changed("timeout") {
		cfg.Fetch.Timeout = f.timeout
	}
	if changed("insecure") {
		cfg.Fetch.InsecureSkipVerify = f.insecure
	}
	if changed("workers") {
		cfg.Download.Workers = f.workers
	}
	if changed("no-rewrite") {
		cfg.RewriteLinks = !f.noRewrite
	}

	outputDir := app.Output.BaseDir
	if changed("output") || outputDir == "" {
		outputDir = f.outputDir
	}
	writeReport := app.Output.WriteReport
	if changed("no-report") {
		writeReport = !f.noReport
	}

	return core.MirrorOptions{
		Config:      cfg,
		OutputDir:   outputDir,
		FolderName:  f.folderName,
		WriteReport: writeReport,
	}
}
