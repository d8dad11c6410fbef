package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/sitemirror/internal/config"
	"github.com/RecoveryAshes/sitemirror/internal/core"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	flags mirrorFlags

	// PersistentPreRunE中加载
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sitemirror [url]",
	Short: "离线网站镜像工具",
	Long: `sitemirror - 把一个网站镜像到本地目录,可离线浏览

从种子URL开始按广度优先爬取同域页面,收集页面引用的样式、脚本、图片等资源,
下载后按URL路径保存,并把HTML中的链接改写为本地相对路径。

示例:
  sitemirror https://example.com
  sitemirror -u example.com -d 2 -o mirrors
  sitemirror -f urls.txt --batch-delay 5s --continue-on-error
  sitemirror -u https://example.com -H "Cookie: session=abc"

  # 验证配置文件和请求头
  sitemirror --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = cfg

		logConfig := cfg.LogConfig()
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if cfg.File != "" {
			utils.Debugf("使用配置文件: %s", cfg.File)
		}
		return nil
	},
	RunE: runMirror,
}

func runMirror(cmd *cobra.Command, args []string) error {
	if len(args) == 1 && flags.targetURL == "" {
		flags.targetURL = args[0]
	}

	headerManager, err := core.NewHeaderManager(appConfig.Fetch.UserAgent, appConfig.Headers, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return runValidateConfig(headerManager)
	}

	if flags.targetURL == "" && flags.urlFile == "" {
		return cmd.Help()
	}

	if err := ValidateFlags(&flags); err != nil {
		return err
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("HTTP头部验证失败: %w", err)
	}
	utils.Debugf("请求头: %v", headerManager.GetSafeHeaders())

	opts := buildMirrorOptions(cmd, &flags, appConfig)
	opts.HeaderProvider = headerManager

	sink := newProgressSink(!flags.noProgress)
	opts.Events = sink

	// Ctrl+C取消ctx,正在进行的请求结束后停止,已写入的文件和报告保留
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.urlFile != "" {
		urls, err := utils.ReadURLsFromFile(flags.urlFile)
		if err != nil {
			return fmt.Errorf("读取URL文件失败: %w", err)
		}

		batch := core.NewBatchMirror(opts, flags.batchDelay, flags.continueOnError)
		summary, err := batch.Run(ctx, urls)
		if err != nil {
			return interrupted(err)
		}
		if summary.FailCount > 0 && summary.SuccessCount == 0 {
			return fmt.Errorf("全部 %d 个URL镜像失败", summary.FailCount)
		}
		utils.Info("批量镜像任务完成")
		return nil
	}

	mirror, err := core.NewMirror(flags.targetURL, opts)
	if err != nil {
		return fmt.Errorf("创建镜像任务失败: %w", err)
	}

	result, err := mirror.Run(ctx)
	if err != nil {
		return interrupted(err)
	}
	printSummary(result)
	return nil
}

func runValidateConfig(hm *core.HeaderManager) error {
	utils.Info("验证配置...")
	mc := appConfig.MirrorConfig()
	if err := mc.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("HTTP头部验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	file := appConfig.File
	if file == "" {
		file = "(默认配置)"
	}
	utils.Infof("配置验证通过: %s", file)
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

func interrupted(err error) error {
	if errors.Is(err, context.Canceled) {
		utils.Warn("收到中断信号,已停止,已下载的文件保留")
	}
	return err
}

func printSummary(result *core.MirrorResult) {
	stats := result.Task.Stats
	fmt.Println("==================================================")
	fmt.Println("镜像统计")
	fmt.Println("==================================================")
	fmt.Printf("访问URL数:   %d\n", stats.VisitedURLs)
	fmt.Printf("发现资源数:  %d\n", stats.AssetURLs)
	fmt.Printf("已保存文件:  %d\n", stats.DownloadedFiles)
	fmt.Printf("失败:        %d\n", stats.FailedFiles)
	fmt.Printf("跳过:        %d\n", stats.SkippedFiles)
	fmt.Printf("改写页面:    %d\n", stats.RewrittenPages)
	fmt.Printf("总大小:      %s\n", utils.FormatSize(stats.TotalSize))
	fmt.Printf("总耗时:      %.2f秒\n", stats.Duration)
	fmt.Printf("镜像目录:    %s\n", result.Task.RootDir)
	if result.ReportDir != "" {
		fmt.Printf("报告目录:    %s\n", result.ReportDir)
	}
	fmt.Println("==================================================")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sitemirror %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

var overwriteConfig bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "生成配置文件模板",
	Args:  cobra.MaximumNArgs(1),
	// 不需要加载配置和日志
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if len(args) == 1 {
			path = args[0]
		}
		created, err := config.WriteTemplate(path, overwriteConfig)
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("配置文件已存在: %s (使用 --force 覆盖)\n", path)
			return nil
		}
		fmt.Printf("已生成配置文件: %s\n", path)
		return nil
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径 (默认搜索 ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	registerMirrorFlags(rootCmd, &flags)

	initConfigCmd.Flags().BoolVar(&overwriteConfig, "force", false, "覆盖已存在的配置文件")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initConfigCmd)
}

// registerMirrorFlags 注册镜像参数,默认值仅用于帮助信息,
// 未显式指定的参数使用配置文件中的值
func registerMirrorFlags(cmd *cobra.Command, f *mirrorFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.targetURL, "url", "u", "", "种子URL,缺少协议时默认https")
	fs.StringVarP(&f.urlFile, "url-file", "f", "", "包含URL列表的文件路径")
	fs.IntVarP(&f.depth, "depth", "d", 3, "最大爬取深度 (0-10)")
	fs.IntVar(&f.queryDepth, "query-depth", 1, "带查询参数的URL仅在父页面深度不超过该值时爬取")
	fs.DurationVar(&f.delay, "delay", 300*time.Millisecond, "相邻两次抓取的间隔")
	fs.DurationVar(&f.timeout, "timeout", 15*time.Second, "单次请求超时")
	fs.IntVarP(&f.workers, "workers", "t", 8, "下载并发数 (1-100)")
	fs.StringVarP(&f.outputDir, "output", "o", "output", "输出目录")
	fs.StringVarP(&f.folderName, "name", "n", "", "镜像目录名 (默认: 主机名_website)")
	fs.BoolVar(&f.noRewrite, "no-rewrite", false, "不改写HTML中的链接")
	fs.BoolVar(&f.noReport, "no-report", false, "不生成JSON报告")
	fs.BoolVar(&f.noScanAssets, "no-scan-assets", false, "不扫描外链CSS/JS中的引用")
	fs.BoolVar(&f.insecure, "insecure", false, "跳过TLS证书验证")
	fs.BoolVar(&f.noProgress, "no-progress", false, "不显示下载进度条")

	// 批量处理参数
	fs.DurationVar(&f.batchDelay, "batch-delay", time.Second, "批量处理URL间延迟")
	fs.BoolVar(&f.continueOnError, "continue-on-error", true, "遇到错误继续处理")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
