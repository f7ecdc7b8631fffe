package scanner

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/LJTian/TechWatch/internal/normalize"
	"github.com/LJTian/TechWatch/internal/storage"
)

// FeedScanner 拉取并解析一个 feed 源，把条目归一化后入库
type FeedScanner struct {
	store  Store
	parser *gofeed.Parser

	now   func() time.Time
	sleep func(time.Duration)
}

func NewFeedScanner(store Store) *FeedScanner {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: feedTimeout}
	p.UserAgent = userAgent

	return &FeedScanner{
		store:  store,
		parser: p,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// ScanSource 扫描单个 feed 源。前置条件不满足时提前返回（不发请求）；
// 单个条目失败只记录错误，不中断整轮扫描。
func (s *FeedScanner) ScanSource(sourceID uint) ScanResult {
	result := ScanResult{Errors: []string{}}

	src, err := s.store.FindSourceByID(sourceID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("source %d: %v", sourceID, err))
		return result
	}
	if src.Type != storage.SourceTypeFeed {
		result.Errors = append(result.Errors, "source is not feed type")
		return result
	}
	if src.FeedURL == "" {
		result.Errors = append(result.Errors, "no feed URL configured")
		return result
	}

	log.Printf("scan feed source: %s (%s)", src.Name, src.FeedURL)

	feed, err := s.parser.ParseURL(src.FeedURL)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch feed: %v", err))
		return result
	}

	log.Printf("feed %s: %d items", src.Name, len(feed.Items))

	for _, item := range feed.Items {
		created, updated, err := s.processItem(src, item)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("item %q: %v", item.Title, err))
			continue
		}
		if created {
			result.Created++
		}
		if updated {
			result.Updated++
		}
	}

	if err := s.store.FinishScan(src.ID, s.now()); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("update source: %v", err))
		return result
	}

	result.Success = true
	log.Printf("feed scan done: %s created=%d updated=%d errors=%d",
		src.Name, result.Created, result.Updated, len(result.Errors))
	return result
}

// processItem 处理单个条目：已存在的只比对标题（低频更新策略），新条目归一化后入库
func (s *FeedScanner) processItem(src *storage.Source, item *gofeed.Item) (created, updated bool, err error) {
	link := extractLink(item)
	if link == "" {
		// 没有可用链接的条目无法去重，直接跳过
		return false, false, nil
	}

	existing, err := s.store.FindArticleByURL(link)
	if err != nil {
		return false, false, err
	}

	if existing != nil {
		title := strings.TrimSpace(item.Title)
		if title != "" && title != existing.Title {
			if err := s.store.UpdateArticleTitle(existing.ID, title); err != nil {
				return false, false, err
			}
			return false, true, nil
		}
		return false, false, nil
	}

	ok, err := s.store.CreateArticle(s.buildArticle(src.ID, item, link))
	if err != nil {
		return false, false, err
	}
	// ok=false 表示并发写入撞了 URL 唯一索引，按已存在处理
	return ok, false, nil
}

// extractLink 取条目链接，link 为空时退回形如 URL 的 GUID
func extractLink(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if strings.HasPrefix(item.GUID, "http") {
		return item.GUID
	}
	return ""
}

// buildArticle 把 feed 条目归一化成文章记录
func (s *FeedScanner) buildArticle(sourceID uint, item *gofeed.Item, link string) *storage.Article {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitledPlaceholder
	}

	a := &storage.Article{
		SourceID:    sourceID,
		Title:       title,
		URL:         link,
		Description: normalize.TruncateRunes(normalize.StripHTML(item.Description), descriptionLimit),
		Content:     normalize.TruncateRunes(normalize.StripHTML(item.Content), contentLimit),
		ImageURL:    extractImage(item),
		Author:      extractAuthor(item),
		PublishedAt: extractPublished(item),
	}

	if len(item.Categories) > 0 {
		a.Category = item.Categories[0]
		a.Tags = item.Categories
	}

	return a
}

// extractImage 图片按 enclosure → media:content → media:thumbnail 的优先级取
func extractImage(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL
		}
	}
	if u := mediaExtensionURL(item, "content"); u != "" {
		return u
	}
	return mediaExtensionURL(item, "thumbnail")
}

func mediaExtensionURL(item *gofeed.Item, name string) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, e := range media[name] {
		if u := e.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

// extractAuthor 作者优先取 dc:creator，退回普通 author 字段
func extractAuthor(item *gofeed.Item) string {
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return item.DublinCoreExt.Creator[0]
	}
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, p := range item.Authors {
		if p != nil && p.Name != "" {
			return p.Name
		}
	}
	return ""
}

// extractPublished 发布时间按 pubDate → 自行解析的原始串 → 更新时间兜底
func extractPublished(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	if t := normalize.ParseDate(item.Published); t != nil {
		return t
	}
	return item.UpdatedParsed
}

// ScanAllSources 顺序扫描全部活跃 feed 源；源与源之间停顿限速。
// 单个源整体失败只计入错误汇总，批处理继续。
func (s *FeedScanner) ScanAllSources() BatchResult {
	summary := BatchResult{Errors: []string{}}

	sources, err := s.store.ListActiveSourcesByType(storage.SourceTypeFeed)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list sources: %v", err))
		return summary
	}

	log.Printf("scanning %d feed sources...", len(sources))

	for _, src := range sources {
		result := s.ScanSource(src.ID)
		summary.TotalScanned++
		summary.TotalCreated += result.Created
		summary.TotalUpdated += result.Updated
		summary.Errors = append(summary.Errors, result.Errors...)

		s.sleep(feedScanPause)
	}

	log.Printf("feed batch done: %d created, %d updated", summary.TotalCreated, summary.TotalUpdated)
	return summary
}
