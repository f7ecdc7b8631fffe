package scanner

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LJTian/TechWatch/internal/storage"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<div class="post">
  <h2 class="title">Post One</h2>
  <a class="link" href="/posts/1">read</a>
  <p class="excerpt">Summary one</p>
  <img class="thumb" data-src="/img/1.png"/>
  <span class="author">Bob</span>
  <time class="date">2024-01-02</time>
</div>
<div class="post">
  <h2 class="title">Post Two</h2>
  <a class="link" href="https://other.example.com/2">read</a>
  <img class="thumb" src="https://cdn.example.com/2.png"/>
</div>
<div class="post">
  <a class="link" href="/posts/ignored">no title here</a>
</div>
</body></html>`

func testSelectorSet() SelectorSet {
	return SelectorSet{
		ArticleSelector:     ".post",
		TitleSelector:       ".title",
		LinkSelector:        "a.link",
		DescriptionSelector: ".excerpt",
		ImageSelector:       "img.thumb",
		DateSelector:        ".date",
		AuthorSelector:      ".author",
	}
}

func scrapingSource(t *testing.T, id uint, pageURL string, cfg SelectorSet) *storage.Source {
	t.Helper()
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal selector set: %v", err)
	}
	return &storage.Source{
		ID:             id,
		Name:           "web source",
		URL:            pageURL,
		Type:           storage.SourceTypeScraping,
		ScrapingConfig: raw,
		IsActive:       true,
	}
}

func newTestWebScraper(store Store, at time.Time) *WebScraper {
	s := NewWebScraper(store)
	s.now = func() time.Time { return at }
	s.sleep = func(time.Duration) {}
	return s
}

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeCreatesArticlesWithAbsoluteURLs(t *testing.T) {
	srv := servePage(t, listingPage)
	store := newFakeStore(scrapingSource(t, 1, srv.URL, testSelectorSet()))

	scannedAt := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	result := newTestWebScraper(store, scannedAt).ScanSource(1)

	if !result.Success {
		t.Fatalf("expected success, errors: %v", result.Errors)
	}
	// 第三个块没有标题，不算文章也不算错误
	if result.Created != 2 {
		t.Fatalf("created=%d, want 2", result.Created)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	a := store.articleByURL(srv.URL + "/posts/1")
	if a == nil {
		t.Fatal("relative link not resolved against page URL")
	}
	if a.Title != "Post One" {
		t.Fatalf("title = %q", a.Title)
	}
	if a.Description != "Summary one" {
		t.Fatalf("description = %q", a.Description)
	}
	// 懒加载图片：src 为空时取 data-src，并解析为绝对地址
	if a.ImageURL != srv.URL+"/img/1.png" {
		t.Fatalf("image = %q, want data-src resolved", a.ImageURL)
	}
	if a.Author != "Bob" {
		t.Fatalf("author = %q", a.Author)
	}
	if a.PublishedAt == nil || !a.PublishedAt.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("publishedAt = %v", a.PublishedAt)
	}

	b := store.articleByURL("https://other.example.com/2")
	if b == nil {
		t.Fatal("absolute link article not created")
	}
	if b.ImageURL != "https://cdn.example.com/2.png" {
		t.Fatalf("image = %q, want src kept", b.ImageURL)
	}

	src := store.sources[1]
	if src.LastScannedAt == nil || src.ArticlesCount != 2 {
		t.Fatalf("source metadata not updated: %+v", src)
	}
}

func TestScrapeSkipsExistingURLsSilently(t *testing.T) {
	srv := servePage(t, listingPage)
	store := newFakeStore(scrapingSource(t, 1, srv.URL, testSelectorSet()))
	s := newTestWebScraper(store, time.Now())

	if r := s.ScanSource(1); r.Created != 2 {
		t.Fatalf("first scan created=%d, want 2", r.Created)
	}

	second := s.ScanSource(1)
	if second.Created != 0 {
		t.Fatalf("rescan created=%d, want 0", second.Created)
	}
	if !second.Success || len(second.Errors) != 0 {
		t.Fatalf("duplicates must not surface as errors: %+v", second)
	}
	if len(store.articles) != 2 {
		t.Fatalf("article count = %d, want 2", len(store.articles))
	}
}

func TestScrapeInvalidConfigShortCircuitsBeforeFetch(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	// 缺 titleSelector 的配置必须在发请求之前就被拒绝
	broken := testSelectorSet()
	broken.TitleSelector = ""
	store := newFakeStore(scrapingSource(t, 1, srv.URL, broken))

	result := newTestWebScraper(store, time.Now()).ScanSource(1)
	if result.Success {
		t.Fatal("expected failure on invalid config")
	}
	if result.Created != 0 || len(result.Errors) == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := requests.Load(); got != 0 {
		t.Fatalf("config error must short-circuit before network I/O, saw %d requests", got)
	}
}

func TestScrapeBlockFailureDoesNotAbortScan(t *testing.T) {
	srv := servePage(t, listingPage)
	store := newFakeStore(scrapingSource(t, 1, srv.URL, testSelectorSet()))
	store.failURL = srv.URL + "/posts/1"

	result := newTestWebScraper(store, time.Now()).ScanSource(1)
	if !result.Success {
		t.Fatalf("scan should still succeed, errors: %v", result.Errors)
	}
	if result.Created != 1 {
		t.Fatalf("created=%d, want 1", result.Created)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", result.Errors)
	}
	// 失败块之后的块照常入库
	if store.articleByURL("https://other.example.com/2") == nil {
		t.Fatal("remaining block should still be created")
	}
}

func TestScrapeMissingConfigIsConfigurationError(t *testing.T) {
	src := &storage.Source{ID: 1, Name: "web", URL: "https://example.com", Type: storage.SourceTypeScraping, IsActive: true}
	store := newFakeStore(src)

	result := newTestWebScraper(store, time.Now()).ScanSource(1)
	if result.Success || len(result.Errors) == 0 {
		t.Fatalf("expected configuration error, got %+v", result)
	}
}

func TestScrapeWrongTypeRejected(t *testing.T) {
	src := &storage.Source{ID: 1, Name: "feedish", URL: "https://example.com", Type: storage.SourceTypeFeed, IsActive: true}
	store := newFakeStore(src)

	result := newTestWebScraper(store, time.Now()).ScanSource(1)
	if result.Success {
		t.Fatal("expected failure for feed-type source")
	}
}

func TestScrapeAllSourcesPacesBetween(t *testing.T) {
	srv := servePage(t, listingPage)
	store := newFakeStore(
		scrapingSource(t, 1, srv.URL, testSelectorSet()),
		scrapingSource(t, 2, srv.URL, testSelectorSet()),
	)

	var pauses []time.Duration
	s := newTestWebScraper(store, time.Now())
	s.sleep = func(d time.Duration) { pauses = append(pauses, d) }

	summary := s.ScanAllSources()
	if summary.TotalScanned != 2 {
		t.Fatalf("totalScanned = %d, want 2", summary.TotalScanned)
	}
	// 两个源指向同一页面，URL 去重后只建一次
	if summary.TotalCreated != 2 {
		t.Fatalf("totalCreated = %d, want 2", summary.TotalCreated)
	}
	if len(pauses) != 2 {
		t.Fatalf("pauses = %d, want 2", len(pauses))
	}
	for _, d := range pauses {
		if d != webScanPause {
			t.Fatalf("pause = %v, want %v", d, webScanPause)
		}
	}
}
