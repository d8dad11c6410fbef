package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/sitemirror/internal/models"
	"github.com/schollz/progressbar/v3"
)

const (
	reportFileName     = "mirror_report.json"
	downloadedFileName = "downloaded_files.json"
	failedFileName     = "failed_files.json"
)

// Reporter 报告生成器
// 报告写到 <outputDir>/reports/<folder>/,与镜像根目录并列
type Reporter struct {
	outputDir string
	folder    string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string, folder string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
		folder:    folder,
	}
}

// Dir 报告目录
func (r *Reporter) Dir() string {
	return filepath.Join(r.outputDir, "reports", r.folder)
}

// GenerateReport 写入镜像报告及成功、失败文件列表
func (r *Reporter) GenerateReport(report *models.MirrorReport) error {
	reportsDir := r.Dir()
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	if report.SuccessFiles == nil {
		report.SuccessFiles = []models.FileInfo{}
	}
	if report.FailedFiles == nil {
		report.FailedFiles = []models.FailedFileInfo{}
	}

	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := r.saveFile(reportsDir, reportFileName, data); err != nil {
		return err
	}
	if err := r.saveJSONReport(reportsDir, downloadedFileName, report.SuccessFiles); err != nil {
		return err
	}
	if err := r.saveJSONReport(reportsDir, failedFileName, report.FailedFiles); err != nil {
		return err
	}

	Infof("报告已生成: %s", reportsDir)
	return nil
}

// LoadReport 读取之前生成的镜像报告
func (r *Reporter) LoadReport() (*models.MirrorReport, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir(), reportFileName))
	if err != nil {
		return nil, fmt.Errorf("读取报告失败: %w", err)
	}
	report := &models.MirrorReport{}
	if err := report.FromJSON(data); err != nil {
		return nil, fmt.Errorf("解析报告失败: %w", err)
	}
	return report, nil
}

func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}
	return r.saveFile(dir, filename, jsonData)
}

func (r *Reporter) saveFile(dir string, filename string, data []byte) error {
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
