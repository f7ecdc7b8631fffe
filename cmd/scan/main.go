package main

import (
	"flag"
	"log"

	"github.com/LJTian/TechWatch/internal/config"
	"github.com/LJTian/TechWatch/internal/scanner"
	"github.com/LJTian/TechWatch/internal/storage"
)

// 一个只执行一轮扫描就退出的命令行入口，适合手动触发或排查单个源
func main() {
	var (
		sourceID = flag.Uint("source", 0, "scan a specific source by id")
		feedOnly = flag.Bool("feed", false, "scan only feed sources")
		webOnly  = flag.Bool("web", false, "scan only web scraping sources")
	)
	flag.Parse()

	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	feed := scanner.NewFeedScanner(store)
	web := scanner.NewWebScraper(store)

	switch {
	case *sourceID != 0:
		src, err := store.FindSourceByID(uint(*sourceID))
		if err != nil {
			log.Fatalf("source %d: %v", *sourceID, err)
		}
		var result scanner.ScanResult
		if src.Type == storage.SourceTypeFeed {
			result = feed.ScanSource(src.ID)
		} else {
			result = web.ScanSource(src.ID)
		}
		log.Printf("scan complete: created=%d updated=%d errors=%v", result.Created, result.Updated, result.Errors)

	case *feedOnly:
		summary := feed.ScanAllSources()
		log.Printf("feed scan complete: %d created, %d updated", summary.TotalCreated, summary.TotalUpdated)

	case *webOnly:
		summary := web.ScanAllSources()
		log.Printf("web scan complete: %d created", summary.TotalCreated)

	default:
		feedSummary := feed.ScanAllSources()
		webSummary := web.ScanAllSources()
		log.Printf("scan complete: feed created=%d updated=%d, web created=%d",
			feedSummary.TotalCreated, feedSummary.TotalUpdated, webSummary.TotalCreated)
	}
}
