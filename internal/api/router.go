package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TechWatch/internal/detector"
	"github.com/LJTian/TechWatch/internal/scanner"
	"github.com/LJTian/TechWatch/internal/scheduler"
	"github.com/LJTian/TechWatch/internal/storage"
)

type Server struct {
	store *storage.Store
	sched *scheduler.Scheduler
	feed  *scanner.FeedScanner
	web   *scanner.WebScraper
	det   *detector.Detector
}

func NewServer(store *storage.Store, sched *scheduler.Scheduler, feed *scanner.FeedScanner, web *scanner.WebScraper, det *detector.Detector) *Server {
	return &Server{store: store, sched: sched, feed: feed, web: web, det: det}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		sources := api.Group("/sources")
		{
			sources.GET("", s.listSources)
			sources.POST("", s.createSource)
			sources.POST("/detect", s.detectSource)
			sources.GET("/:id", s.getSource)
			sources.PUT("/:id", s.updateSource)
			sources.DELETE("/:id", s.deleteSource)
			sources.GET("/:id/articles", s.sourceArticles)
			sources.POST("/:id/scan", s.scanSource)
			sources.POST("/scan-all", s.scanAll)
		}

		articles := api.Group("/articles")
		{
			articles.GET("", s.listArticles)
			articles.GET("/featured", s.featuredArticles)
			articles.GET("/recent", s.recentArticles)
			articles.GET("/:id", s.getArticle)
			articles.POST("", s.createArticle)
			articles.DELETE("/:id", s.deleteArticle)
		}

		sched := api.Group("/scheduler")
		{
			sched.GET("/status", s.schedulerStatus)
			sched.POST("/start", s.schedulerStart)
			sched.POST("/stop", s.schedulerStop)
			sched.POST("/run-now", s.schedulerRunNow)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---- scheduler ----

func (s *Server) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.sched.GetStatus())
}

func (s *Server) schedulerStart(c *gin.Context) {
	s.sched.Start()
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler started", "status": s.sched.GetStatus()})
}

func (s *Server) schedulerStop(c *gin.Context) {
	s.sched.Stop()
	c.JSON(http.StatusOK, gin.H{"message": "Scheduler stopped", "status": s.sched.GetStatus()})
}

func (s *Server) schedulerRunNow(c *gin.Context) {
	scanned := s.sched.RunScheduledScans()
	c.JSON(http.StatusOK, gin.H{"message": "Scan completed", "sourcesScanned": scanned})
}
