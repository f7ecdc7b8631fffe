package detector

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/LJTian/TechWatch/internal/storage"
)

// 探测结论的获得方式
const (
	MethodDirectURL     = "direct-url"
	MethodLinkTag       = "link-tag"
	MethodCommonPath    = "common-path"
	MethodNoneFound     = "none-found"
	MethodErrorFallback = "error-fallback"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; TechWatchBot/1.0)"
	probeTimeout = 10 * time.Second
)

// feedIndicators URL 中出现这些片段时，优先当作订阅地址直接验证
var feedIndicators = []string{"/feed", "/rss", "/atom", ".xml", "/feeds"}

// commonFeedPaths 站点根下的约定俗成的订阅路径（最后一个是 Blogger）
var commonFeedPaths = []string{
	"/feed",
	"/rss",
	"/atom",
	"/feed.xml",
	"/rss.xml",
	"/atom.xml",
	"/index.xml",
	"/feeds/posts/default",
}

// Result 是一次源类型探测的结论
type Result struct {
	Type            string `json:"type"`
	FeedURL         string `json:"feedUrl"`
	DetectionMethod string `json:"detectionMethod"`
	URL             string `json:"url"` // 清洗后的输入 URL
}

// Detector 判断一个候选 URL 是订阅源还是只能走页面抓取
type Detector struct {
	client *http.Client
	parser *gofeed.Parser
}

func New() *Detector {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: probeTimeout}
	p.UserAgent = userAgent

	return &Detector{
		client: &http.Client{Timeout: probeTimeout},
		parser: p,
	}
}

// Detect 依次尝试：URL 直判 → 页面 <link> 标签 → 常见路径探测。
// 任何内部失败都不会抛给调用方，兜底返回 scraping 类型。
func (d *Detector) Detect(rawURL string) Result {
	sanitized := sanitizeURL(rawURL)

	parsed, err := url.Parse(sanitized)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		log.Printf("detect %q: invalid url, fallback to scraping", rawURL)
		return Result{
			Type:            storage.SourceTypeScraping,
			DetectionMethod: MethodErrorFallback,
			URL:             sanitized,
		}
	}

	// 1. URL 本身就像订阅地址，直接按订阅源验证
	if looksLikeFeedURL(sanitized) && d.isValidFeed(sanitized) {
		return Result{
			Type:            storage.SourceTypeFeed,
			FeedURL:         sanitized,
			DetectionMethod: MethodDirectURL,
			URL:             sanitized,
		}
	}

	// 2. 抓页面找 <link> 标签里声明的订阅地址
	if feedURL := d.findFeedLink(sanitized); feedURL != "" {
		return Result{
			Type:            storage.SourceTypeFeed,
			FeedURL:         feedURL,
			DetectionMethod: MethodLinkTag,
			URL:             sanitized,
		}
	}

	// 3. 对站点根逐个探测常见订阅路径
	if feedURL := d.probeCommonPaths(parsed); feedURL != "" {
		return Result{
			Type:            storage.SourceTypeFeed,
			FeedURL:         feedURL,
			DetectionMethod: MethodCommonPath,
			URL:             sanitized,
		}
	}

	// 4. 什么都没找到，只能走页面抓取
	return Result{
		Type:            storage.SourceTypeScraping,
		DetectionMethod: MethodNoneFound,
		URL:             sanitized,
	}
}

// sanitizeURL 去掉首尾空白和误带的引号
func sanitizeURL(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, `"`, ""))
}

func looksLikeFeedURL(u string) bool {
	lower := strings.ToLower(u)
	for _, indicator := range feedIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// isValidFeed 拉取并解析；解析不报错就算有效订阅源，空条目也算
func (d *Detector) isValidFeed(feedURL string) bool {
	_, err := d.parser.ParseURL(feedURL)
	return err == nil
}

// findFeedLink 抓取页面，扫描 <link> 标签：先看显式声明了 rss/atom/xml 类型的，
// 再看 rel=alternate 且类型匹配的；候选 href 解析成绝对地址后逐个验证，第一个有效的生效
func (d *Detector) findFeedLink(pageURL string) string {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("detect %s: fetch page failed: %v", pageURL, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var candidates []string
	doc.Find(`link[type*="rss"], link[type*="atom"], link[type*="xml"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			candidates = append(candidates, href)
		}
	})
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		if !strings.Contains(typ, "rss") && !strings.Contains(typ, "atom") && !strings.Contains(typ, "xml") {
			return
		}
		if href, ok := s.Attr("href"); ok && href != "" {
			candidates = append(candidates, href)
		}
	})

	for _, href := range candidates {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		absolute := base.ResolveReference(ref).String()
		if d.isValidFeed(absolute) {
			return absolute
		}
	}

	return ""
}

// probeCommonPaths 按固定顺序探测常见订阅路径，第一个有效的生效
func (d *Detector) probeCommonPaths(parsed *url.URL) string {
	origin := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	for _, path := range commonFeedPaths {
		candidate := origin + path
		if d.isValidFeed(candidate) {
			return candidate
		}
	}
	return ""
}
