package crawlers

import (
	"net/url"
	"strings"
)

// DomainFilter 同域过滤器
// 仅当URL的主机(含端口)与目标主机完全一致时放行,不做www或子域名折叠
type DomainFilter struct {
	host string
}

// NewDomainFilter 创建同域过滤器
func NewDomainFilter(targetHost string) DomainFilter {
	return DomainFilter{host: strings.ToLower(targetHost)}
}

// Allows 检查绝对URL是否属于目标主机
func (f DomainFilter) Allows(absURL string) bool {
	u, err := url.Parse(absURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host == f.host
}
