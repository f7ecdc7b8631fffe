package scanner

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// SelectorSet 是 scraping 源的选择器配置：articleSelector 定位重复的文章块，
// 其余选择器在每个块内取字段，description/image/date/author 可选
type SelectorSet struct {
	ArticleSelector     string `json:"articleSelector"`
	TitleSelector       string `json:"titleSelector"`
	LinkSelector        string `json:"linkSelector"`
	DescriptionSelector string `json:"descriptionSelector,omitempty"`
	ImageSelector       string `json:"imageSelector,omitempty"`
	DateSelector        string `json:"dateSelector,omitempty"`
	AuthorSelector      string `json:"authorSelector,omitempty"`
}

// Validate 检查三个必填选择器；配置残缺的源在发任何请求之前就被拒绝
func (c *SelectorSet) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ArticleSelector) == "" {
		missing = append(missing, "articleSelector")
	}
	if strings.TrimSpace(c.TitleSelector) == "" {
		missing = append(missing, "titleSelector")
	}
	if strings.TrimSpace(c.LinkSelector) == "" {
		missing = append(missing, "linkSelector")
	}
	if len(missing) > 0 {
		return fmt.Errorf("scraping config missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParseSelectorSet 解析并校验 JSON 存储的选择器配置
func ParseSelectorSet(raw []byte) (*SelectorSet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no scraping configuration found")
	}
	cfg := &SelectorSet{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse scraping config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultSelectorConfig 为新注册的 scraping 源生成一份初始配置：
// 已知站点用定制选择器，其它站点给一套通用兜底
func DefaultSelectorConfig(rawURL string) SelectorSet {
	if u, err := url.Parse(rawURL); err == nil && strings.Contains(u.Hostname(), "medium.com") {
		return SelectorSet{
			ArticleSelector:     "article",
			TitleSelector:       "h2",
			LinkSelector:        "a",
			DescriptionSelector: "h3",
			ImageSelector:       "img",
			AuthorSelector:      ".author",
		}
	}

	return SelectorSet{
		ArticleSelector:     "article, .post, .article, .entry",
		TitleSelector:       "h1, h2, h3, .title, .post-title",
		LinkSelector:        "a",
		DescriptionSelector: ".excerpt, .summary, p",
		ImageSelector:       "img",
	}
}
