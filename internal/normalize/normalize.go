package normalize

import (
	"regexp"
	"strings"
	"time"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// entityReplacer 只解码最常见的几个 HTML 实体，足够覆盖主流 RSS 摘要
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// StripHTML 去掉标签、解码实体并把空白折叠成单个空格，得到纯文本
func StripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TruncateRunes 按 rune 数截断字符串，避免把多字节字符截成半个
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// dateLayouts 依次尝试的时间格式：ISO、HTTP 日期、SQL、常见 RSS 变体
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC822Z,
	time.RFC822,
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseDate 逐个尝试已知格式，第一个解析成功的生效；全部失败返回 nil
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
