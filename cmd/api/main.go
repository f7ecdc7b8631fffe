package main

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TechWatch/internal/api"
	"github.com/LJTian/TechWatch/internal/config"
	"github.com/LJTian/TechWatch/internal/detector"
	"github.com/LJTian/TechWatch/internal/scanner"
	"github.com/LJTian/TechWatch/internal/scheduler"
	"github.com/LJTian/TechWatch/internal/storage"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	feed := scanner.NewFeedScanner(store)
	web := scanner.NewWebScraper(store)
	det := detector.New()

	sched, err := scheduler.New(cfg.ScanCron, cfg.ScanIntervalMinutes, store, feed, web)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	sched.Start()

	// 收到退出信号先停掉调度器，进行中的一轮扫描不会被打断
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received %s, stopping scheduler...", sig)
		sched.Stop()
		os.Exit(0)
	}()

	r := gin.Default()

	// 配置了 API_KEY 时全站启用密钥校验，/health 免认证方便探活
	if cfg.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	apiServer := api.NewServer(store, sched, feed, web, det)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// apiKeyMiddleware 校验 X-API-Key 请求头（或 api_key 查询参数）
func apiKeyMiddleware(key string) gin.HandlerFunc {
	keyBytes := []byte(key)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		got := c.GetHeader("X-API-Key")
		if got == "" {
			got = c.Query("api_key")
		}
		if subtle.ConstantTimeCompare([]byte(got), keyBytes) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or missing API key"})
			return
		}
		c.Next()
	}
}
