package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/LJTian/TechWatch/internal/scanner"
	"github.com/LJTian/TechWatch/internal/storage"
)

type createSourceRequest struct {
	Name           string          `json:"name"`
	URL            string          `json:"url"`
	LogoURL        string          `json:"logoUrl"`
	Type           string          `json:"type"`
	FeedURL        string          `json:"feedUrl"`
	ScrapingConfig json.RawMessage `json:"scrapingConfig"`
	ScanFrequency  int             `json:"scanFrequency"`
}

type updateSourceRequest struct {
	Name           *string         `json:"name"`
	URL            *string         `json:"url"`
	LogoURL        *string         `json:"logoUrl"`
	Type           *string         `json:"type"`
	FeedURL        *string         `json:"feedUrl"`
	ScrapingConfig json.RawMessage `json:"scrapingConfig"`
	ScanFrequency  *int            `json:"scanFrequency"`
	IsActive       *bool           `json:"isActive"`
}

func (s *Server) listSources(c *gin.Context) {
	list, err := s.store.ListSources()
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if n := utf8.RuneCountInString(req.Name); n < 2 || n > 100 {
		badRequest(c, "name must be 2-100 characters")
		return
	}
	if !isValidURL(req.URL) {
		badRequest(c, "url must be a valid http(s) URL")
		return
	}
	if req.Type != storage.SourceTypeFeed && req.Type != storage.SourceTypeScraping {
		badRequest(c, "type must be feed or scraping")
		return
	}
	if req.Type == storage.SourceTypeFeed && !isValidURL(req.FeedURL) {
		badRequest(c, "feedUrl is required for feed sources")
		return
	}
	if req.ScanFrequency != 0 && (req.ScanFrequency < 5 || req.ScanFrequency > 1440) {
		badRequest(c, "scanFrequency must be between 5 and 1440 minutes")
		return
	}

	src := &storage.Source{
		Name:           req.Name,
		URL:            req.URL,
		LogoURL:        req.LogoURL,
		Type:           req.Type,
		FeedURL:        req.FeedURL,
		ScrapingConfig: datatypes.JSON(req.ScrapingConfig),
		IsActive:       true,
		ScanFrequency:  req.ScanFrequency,
	}

	// scraping 源没给选择器配置时，生成一份默认配置作为起点
	if src.Type == storage.SourceTypeScraping && len(req.ScrapingConfig) == 0 {
		cfg := scanner.DefaultSelectorConfig(req.URL)
		if bs, err := json.Marshal(cfg); err == nil {
			src.ScrapingConfig = bs
		}
	}

	if err := s.store.CreateSource(src); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"code": "conflict", "message": "source url already exists"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, src)
}

func (s *Server) getSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	src, err := s.store.FindSourceByID(id)
	if err != nil {
		notFoundOrError(c, err)
		return
	}
	c.JSON(http.StatusOK, src)
}

func (s *Server) updateSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	current, err := s.store.FindSourceByID(id)
	if err != nil {
		notFoundOrError(c, err)
		return
	}

	fields, msg := buildSourceUpdate(req, current)
	if msg != "" {
		badRequest(c, msg)
		return
	}

	src, err := s.store.UpdateSource(id, fields)
	if err != nil {
		notFoundOrError(c, err)
		return
	}
	c.JSON(http.StatusOK, src)
}

// buildSourceUpdate 校验部分更新请求并生成更新字段；msg 非空表示校验失败
func buildSourceUpdate(req updateSourceRequest, current *storage.Source) (fields map[string]any, msg string) {
	fields = map[string]any{}
	if req.Name != nil {
		if n := utf8.RuneCountInString(*req.Name); n < 2 || n > 100 {
			return nil, "name must be 2-100 characters"
		}
		fields["name"] = *req.Name
	}
	if req.URL != nil {
		if !isValidURL(*req.URL) {
			return nil, "url must be a valid http(s) URL"
		}
		fields["url"] = *req.URL
	}
	if req.LogoURL != nil {
		fields["logo_url"] = *req.LogoURL
	}
	if req.Type != nil {
		if *req.Type != storage.SourceTypeFeed && *req.Type != storage.SourceTypeScraping {
			return nil, "type must be feed or scraping"
		}
		fields["type"] = *req.Type
	}
	if req.FeedURL != nil {
		fields["feed_url"] = *req.FeedURL
	}
	if len(req.ScrapingConfig) > 0 {
		fields["scraping_config"] = datatypes.JSON(req.ScrapingConfig)
	}
	if req.ScanFrequency != nil {
		if *req.ScanFrequency < 5 || *req.ScanFrequency > 1440 {
			return nil, "scanFrequency must be between 5 and 1440 minutes"
		}
		fields["scan_frequency"] = *req.ScanFrequency
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}

	// 类型或订阅地址被改动时，更新后的组合必须成立：feed 源不能没有订阅地址
	if req.Type != nil || req.FeedURL != nil {
		typ := current.Type
		if req.Type != nil {
			typ = *req.Type
		}
		feedURL := current.FeedURL
		if req.FeedURL != nil {
			feedURL = *req.FeedURL
		}
		if typ == storage.SourceTypeFeed && !isValidURL(feedURL) {
			return nil, "feedUrl is required for feed sources"
		}
	}

	return fields, ""
}

func (s *Server) deleteSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteSource(id); err != nil {
		notFoundOrError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) sourceArticles(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	list, total, err := s.store.SourceArticles(id, page, limit)
	if err != nil {
		notFoundOrError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": list,
		"meta": gin.H{"total": total, "page": page, "limit": limit},
	})
}

func (s *Server) detectSource(c *gin.Context) {
	var req struct {
		URL string `json:"url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !isValidURL(req.URL) {
		badRequest(c, "url must be a valid http(s) URL")
		return
	}

	c.JSON(http.StatusOK, s.det.Detect(req.URL))
}

// scanSource 按源类型分发扫描；HTTP 层面始终 200，成败看返回体里的 success
func (s *Server) scanSource(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	src, err := s.store.FindSourceByID(id)
	if err != nil {
		notFoundOrError(c, err)
		return
	}

	var result scanner.ScanResult
	if src.Type == storage.SourceTypeFeed {
		result = s.feed.ScanSource(src.ID)
	} else {
		result = s.web.ScanSource(src.ID)
	}
	c.JSON(http.StatusOK, result)
}

// scanAll 扫描全部活跃源，两类各自汇总；单源失败只体现在 errors 里
func (s *Server) scanAll(c *gin.Context) {
	feedSummary := s.feed.ScanAllSources()
	webSummary := s.web.ScanAllSources()
	c.JSON(http.StatusOK, gin.H{
		"feed":     feedSummary,
		"scraping": webSummary,
	})
}

// ---- 小工具 ----

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}

func isValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": msg})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{"code": "internal_error", "message": err.Error()})
}

func notFoundOrError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "record not found"})
		return
	}
	internalError(c, err)
}
