package scanner

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/LJTian/TechWatch/internal/normalize"
	"github.com/LJTian/TechWatch/internal/storage"
)

// WebScraper 按源配置的选择器抓取页面上的文章块
type WebScraper struct {
	store Store

	now   func() time.Time
	sleep func(time.Duration)
}

func NewWebScraper(store Store) *WebScraper {
	return &WebScraper{
		store: store,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// ScanSource 抓取单个 scraping 源。配置残缺在发任何请求之前就短路返回；
// 单个文章块失败只记录错误，继续处理其余块。
func (s *WebScraper) ScanSource(sourceID uint) ScanResult {
	result := ScanResult{Errors: []string{}}

	src, err := s.store.FindSourceByID(sourceID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("source %d: %v", sourceID, err))
		return result
	}
	if src.Type != storage.SourceTypeScraping {
		result.Errors = append(result.Errors, "source is not scraping type")
		return result
	}

	cfg, err := ParseSelectorSet(src.ScrapingConfig)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	log.Printf("scrape web source: %s (%s)", src.Name, src.URL)

	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.SetRequestTimeout(pageTimeout)

	c.OnHTML(cfg.ArticleSelector, func(e *colly.HTMLElement) {
		created, err := s.processElement(src, cfg, e)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("process article: %v", err))
			return
		}
		if created {
			result.Created++
		}
	})

	if err := c.Visit(src.URL); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch page: %v", err))
		return result
	}

	if err := s.store.FinishScan(src.ID, s.now()); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("update source: %v", err))
		return result
	}

	result.Success = true
	log.Printf("scrape done: %s created=%d errors=%d", src.Name, result.Created, len(result.Errors))
	return result
}

// processElement 从一个文章块里抽字段并入库；已存在的 URL 静默跳过
func (s *WebScraper) processElement(src *storage.Source, cfg *SelectorSet, e *colly.HTMLElement) (bool, error) {
	title := strings.TrimSpace(e.ChildText(cfg.TitleSelector))
	link := e.ChildAttr(cfg.LinkSelector, "href")
	if title == "" || link == "" {
		// 缺标题或链接的块不构成文章，跳过
		return false, nil
	}

	absoluteURL := e.Request.AbsoluteURL(link)
	if absoluteURL == "" {
		return false, nil
	}

	existing, err := s.store.FindArticleByURL(absoluteURL)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	a := &storage.Article{
		SourceID: src.ID,
		Title:    title,
		URL:      absoluteURL,
	}

	if cfg.DescriptionSelector != "" {
		desc := strings.TrimSpace(e.ChildText(cfg.DescriptionSelector))
		a.Description = normalize.TruncateRunes(desc, descriptionLimit)
	}

	if cfg.ImageSelector != "" {
		// 懒加载的图片地址常放在 data-src 里
		img := e.ChildAttr(cfg.ImageSelector, "src")
		if img == "" {
			img = e.ChildAttr(cfg.ImageSelector, "data-src")
		}
		if img != "" {
			a.ImageURL = e.Request.AbsoluteURL(img)
		}
	}

	if cfg.AuthorSelector != "" {
		a.Author = strings.TrimSpace(e.ChildText(cfg.AuthorSelector))
	}

	if cfg.DateSelector != "" {
		dateText := strings.TrimSpace(e.ChildText(cfg.DateSelector))
		a.PublishedAt = normalize.ParseDate(dateText)
	}

	return s.store.CreateArticle(a)
}

// ScanAllSources 顺序抓取全部活跃 scraping 源；页面抓取较重，停顿比 feed 批量更长
func (s *WebScraper) ScanAllSources() BatchResult {
	summary := BatchResult{Errors: []string{}}

	sources, err := s.store.ListActiveSourcesByType(storage.SourceTypeScraping)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list sources: %v", err))
		return summary
	}

	log.Printf("scraping %d web sources...", len(sources))

	for _, src := range sources {
		result := s.ScanSource(src.ID)
		summary.TotalScanned++
		summary.TotalCreated += result.Created
		summary.Errors = append(summary.Errors, result.Errors...)

		s.sleep(webScanPause)
	}

	log.Printf("scrape batch done: %d created", summary.TotalCreated)
	return summary
}
