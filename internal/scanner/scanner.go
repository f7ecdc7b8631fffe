package scanner

import (
	"time"

	"github.com/LJTian/TechWatch/internal/storage"
)

const (
	userAgent = "Mozilla/5.0 (compatible; TechWatchBot/1.0)"

	feedTimeout = 15 * time.Second
	pageTimeout = 15 * time.Second

	// 批量扫描时源与源之间的停顿，保护外部站点不被连续请求打爆；
	// 页面抓取比订阅拉取重，停顿更长
	feedScanPause = 2 * time.Second
	webScanPause  = 3 * time.Second

	descriptionLimit = 500
	contentLimit     = 5000

	// 条目没有标题时的占位值
	untitledPlaceholder = "Untitled"
)

// Store 是扫描链路依赖的记录存储能力，由 storage.Store 实现
type Store interface {
	FindSourceByID(id uint) (*storage.Source, error)
	ListActiveSourcesByType(typ string) ([]storage.Source, error)
	FindArticleByURL(url string) (*storage.Article, error)
	// CreateArticle 返回是否真正新建；URL 撞唯一索引时返回 false 且无错误
	CreateArticle(a *storage.Article) (bool, error)
	UpdateArticleTitle(id uint, title string) error
	FinishScan(sourceID uint, scannedAt time.Time) error
}

// ScanResult 单个源一次扫描的结果；条目级错误收集在 Errors 里，不会中断扫描
type ScanResult struct {
	Success bool     `json:"success"`
	Created int      `json:"articlesCreated"`
	Updated int      `json:"articlesUpdated"`
	Errors  []string `json:"errors"`
}

// BatchResult 一批源的汇总结果
type BatchResult struct {
	TotalScanned int      `json:"totalScanned"`
	TotalCreated int      `json:"totalCreated"`
	TotalUpdated int      `json:"totalUpdated"`
	Errors       []string `json:"errors"`
}
