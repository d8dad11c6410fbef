package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// DefaultUserAgent 默认客户端标识
const DefaultUserAgent = "SiteMirror/1.0 (+offline website mirror)"

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// NormalizeSeedURL 规范化种子URL,缺少协议时补全https://
func NormalizeSeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("URL不能为空")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	if err := ValidateURL(raw); err != nil {
		return "", err
	}
	return raw, nil
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}

// NewSessionID 生成会话ID
func NewSessionID() string {
	return generateID()
}
