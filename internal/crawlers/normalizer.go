package crawlers

import (
	"net/url"
	"strings"

	"github.com/RecoveryAshes/sitemirror/internal/models"
)

// NormalizeReference 将页面中的原始引用解析为绝对URL
// 优先级:
//  1. "//host/path"  -> 补全base的协议
//  2. "/path"        -> 相对于base(站点根)解析
//  3. "./" "../"     -> 相对于当前页面解析
//  4. 已带协议       -> 原样返回
//  5. 其他           -> 相对于当前页面解析
//
// 返回值不含片段(#...),主机名转小写,http(s)的空路径补为"/"
func NormalizeReference(raw string, page, base *url.URL) (string, error) {
	ref := strings.TrimSpace(raw)
	if ref == "" {
		return "", &models.ResolutionError{Raw: raw, Reason: "空引用"}
	}

	var resolved *url.URL
	var err error

	switch {
	case strings.HasPrefix(ref, "//"):
		resolved, err = url.Parse(base.Scheme + ":" + ref)
	case strings.HasPrefix(ref, "/"):
		resolved, err = resolveAgainst(base, ref)
	case strings.HasPrefix(ref, "./"), strings.HasPrefix(ref, "../"):
		resolved, err = resolveAgainst(page, ref)
	default:
		resolved, err = url.Parse(ref)
		if err == nil && resolved.Scheme == "" {
			resolved, err = resolveAgainst(page, ref)
		}
	}
	if err != nil {
		return "", &models.ResolutionError{Raw: raw, Reason: err.Error()}
	}

	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.Scheme == "http" || resolved.Scheme == "https" {
		if resolved.Host == "" {
			return "", &models.ResolutionError{Raw: raw, Reason: "缺少主机名"}
		}
		resolved.Host = strings.ToLower(resolved.Host)
		if resolved.Path == "" && resolved.Opaque == "" {
			resolved.Path = "/"
		}
	}

	return resolved.String(), nil
}

func resolveAgainst(against *url.URL, ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return against.ResolveReference(parsed), nil
}

// NormalizeSeed 规范化种子URL,与页面引用使用同一套规则,保证身份一致
func NormalizeSeed(seed string) (string, *url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return "", nil, &models.ResolutionError{Raw: seed, Reason: err.Error()}
	}
	normalized, err := NormalizeReference(seed, parsed, parsed)
	if err != nil {
		return "", nil, err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", nil, &models.ResolutionError{Raw: seed, Reason: err.Error()}
	}
	return normalized, u, nil
}
