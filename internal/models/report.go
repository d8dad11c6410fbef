package models

import (
	"encoding/json"
	"time"
)

// MirrorReport 镜像报告
type MirrorReport struct {
	// 任务信息
	TaskID    string `json:"task_id"`
	TargetURL string `json:"target_url"`
	Domain    string `json:"domain"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats MirrorStats `json:"stats"`

	// 文件列表
	SuccessFiles []FileInfo       `json:"success_files"` // 成功写入的文件
	FailedFiles  []FailedFileInfo `json:"failed_files"`  // 失败文件

	// 输出路径
	RootDir string `json:"root_dir"`

	// 配置快照
	Config MirrorConfig `json:"config"`
}

// FileInfo 文件信息
type FileInfo struct {
	URL          string    `json:"url"`
	FilePath     string    `json:"file_path"`
	Size         int64     `json:"size"`
	Phase        string    `json:"phase"` // crawl, download
	DownloadedAt time.Time `json:"downloaded_at"`
}

// FailedFileInfo 失败文件信息
type FailedFileInfo struct {
	URL        string `json:"url"`
	ErrorType  string `json:"error_type"` // fetch, http_status, write
	ErrorMsg   string `json:"error_msg"`
	StatusCode int    `json:"status_code,omitempty"`
	Phase      string `json:"phase"`
}

// ToJSON 序列化为JSON
func (r *MirrorReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *MirrorReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
