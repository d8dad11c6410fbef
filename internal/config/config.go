package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/RecoveryAshes/sitemirror/internal/utils"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile 默认配置文件路径
	DefaultConfigFile = "configs/config.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed config_template.yaml
var defaultTemplate string

// Config 应用程序配置
type Config struct {
	Crawl    models.CrawlConfig    `mapstructure:"crawl"`
	Fetch    models.FetchConfig    `mapstructure:"fetch"`
	Download models.DownloadConfig `mapstructure:"download"`
	Mirror   MirrorSection         `mapstructure:"mirror"`
	Output   OutputConfig          `mapstructure:"output"`
	Logging  LoggingConfig         `mapstructure:"logging"`

	// 键为头部名称(viper会转为小写,合并时再规范化)
	Headers map[string]string `mapstructure:"headers"`

	// 实际加载的配置文件,未找到时为空
	File string `mapstructure:"-"`
}

// MirrorSection mirror段
type MirrorSection struct {
	RewriteLinks bool `mapstructure:"rewrite_links"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir     string `mapstructure:"base_dir"`
	WriteReport bool   `mapstructure:"write_report"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// LoadConfig 加载配置文件
// configPath为空时依次搜索 ./configs, ., ~/.sitemirror,都不存在则使用默认值;
// 显式指定的文件不存在视为错误
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		if err := validateFileSize(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sitemirror"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			utils.Debugf("未找到配置文件,使用默认配置")
		case errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK):
			// 文件被其他进程锁定时降级为默认配置
			utils.Warnf("配置文件被锁定 [%s], 使用默认配置", configPath)
		default:
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{
			FilePath: v.ConfigFileUsed(),
			Cause:    fmt.Errorf("配置绑定失败: %w", err),
		}
	}
	config.File = v.ConfigFileUsed()
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}

	return &config, nil
}

// setDefaults 设置默认配置值,与 models.DefaultMirrorConfig 保持一致
func setDefaults(v *viper.Viper) {
	d := models.DefaultMirrorConfig()

	v.SetDefault("crawl.max_depth", d.Crawl.MaxDepth)
	v.SetDefault("crawl.max_query_depth", d.Crawl.MaxQueryDepth)
	v.SetDefault("crawl.politeness_delay", d.Crawl.PolitenessDelay)
	v.SetDefault("crawl.excluded_extensions", d.Crawl.ExcludedExtensions)
	v.SetDefault("crawl.scan_linked_assets", d.Crawl.ScanLinkedAssets)

	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.max_body_size", d.Fetch.MaxBodySize)
	v.SetDefault("fetch.insecure_skip_verify", d.Fetch.InsecureSkipVerify)

	v.SetDefault("download.workers", d.Download.Workers)
	v.SetDefault("download.progress_every", d.Download.ProgressEvery)
	v.SetDefault("download.skip_extensions", d.Download.SkipExtensions)
	v.SetDefault("download.safety_reserve_memory", d.Download.SafetyReserveMemory)

	v.SetDefault("mirror.rewrite_links", d.RewriteLinks)

	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.write_report", true)

	logDefaults := utils.DefaultLogConfig()
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.log_dir", logDefaults.LogDir)
	v.SetDefault("logging.rotation.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.rotation.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.rotation.max_age", logDefaults.MaxAge)
	v.SetDefault("logging.rotation.compress", logDefaults.Compress)
}

// MirrorConfig 提取单次镜像运行的配置
func (c *Config) MirrorConfig() models.MirrorConfig {
	return models.MirrorConfig{
		Crawl:        c.Crawl,
		Fetch:        c.Fetch,
		Download:     c.Download,
		RewriteLinks: c.Mirror.RewriteLinks,
	}
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// WriteTemplate 生成配置模板
// 文件已存在且未指定overwrite时不做任何修改
func WriteTemplate(path string, overwrite bool) (bool, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(defaultTemplate), 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", path, err)
	}
	return true, nil
}

func validateFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &models.ConfigError{FilePath: path, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: path,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}
