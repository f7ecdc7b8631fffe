package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TechWatch/internal/storage"
)

func (s *Server) listArticles(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	sourceID := uint(queryInt(c, "source_id", 0))
	category := c.Query("category")

	list, total, err := s.store.ListArticles(page, limit, sourceID, category)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": list,
		"meta": gin.H{"total": total, "page": page, "limit": limit},
	})
}

func (s *Server) featuredArticles(c *gin.Context) {
	list, err := s.store.FeaturedArticles(queryInt(c, "limit", 10))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) recentArticles(c *gin.Context) {
	list, err := s.store.RecentArticles(queryInt(c, "limit", 20))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getArticle(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	a, err := s.store.GetArticle(id)
	if err != nil {
		notFoundOrError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type createArticleRequest struct {
	SourceID    uint       `json:"sourceId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	URL         string     `json:"url"`
	ImageURL    string     `json:"imageUrl"`
	Author      string     `json:"author"`
	PublishedAt *time.Time `json:"publishedAt"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
}

func (s *Server) createArticle(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Title == "" || !isValidURL(req.URL) || req.SourceID == 0 {
		badRequest(c, "sourceId, title and a valid url are required")
		return
	}

	// 归属的源必须存在；文章随源级联删除
	if _, err := s.store.FindSourceByID(req.SourceID); err != nil {
		notFoundOrError(c, err)
		return
	}

	a := &storage.Article{
		SourceID:    req.SourceID,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		URL:         req.URL,
		ImageURL:    req.ImageURL,
		Author:      req.Author,
		PublishedAt: req.PublishedAt,
		Category:    req.Category,
		Tags:        req.Tags,
	}

	if err := s.store.CreateArticleChecked(a); err != nil {
		if errors.Is(err, storage.ErrArticleExists) {
			c.JSON(http.StatusConflict, gin.H{"code": "conflict", "message": "Article already exists"})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, a)
}

func (s *Server) deleteArticle(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := s.store.DeleteArticle(id); err != nil {
		notFoundOrError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
