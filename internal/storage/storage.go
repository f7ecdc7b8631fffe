package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/TechWatch/internal/normalize"
)

// 源类型：feed 表示站点提供 RSS/Atom 订阅，scraping 表示只能抓页面
const (
	SourceTypeFeed     = "feed"
	SourceTypeScraping = "scraping"
)

// DefaultScanFrequency 单个源的默认扫描频率（分钟）
const DefaultScanFrequency = 30

// Source 描述一个被监控的外部发布方
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:100" json:"name"`
	URL     string `gorm:"size:512;uniqueIndex" json:"url"`
	LogoURL string `gorm:"size:512" json:"logoUrl"`
	Type    string `gorm:"size:16;index" json:"type"` // feed / scraping
	FeedURL string `gorm:"size:512" json:"feedUrl"`
	// scraping 类型的选择器配置，JSON 存储，扫描时解析并校验
	ScrapingConfig datatypes.JSON `json:"scrapingConfig"`
	IsActive       bool           `gorm:"default:true;index" json:"isActive"`
	// 扫描频率（分钟），与全局触发周期解耦，每个源可单独调整
	ScanFrequency int        `gorm:"default:30" json:"scanFrequency"`
	LastScannedAt *time.Time `json:"lastScannedAt"`
	ArticlesCount int        `gorm:"default:0" json:"articlesCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Articles []Article `gorm:"constraint:OnDelete:CASCADE" json:"articles,omitempty"`
}

// Article 是归一化后的文章记录，URL 全局唯一，作为去重键
type Article struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	SourceID    uint   `gorm:"index" json:"sourceId"`
	Title       string `gorm:"size:512" json:"title"`
	Description string `gorm:"size:600" json:"description"`
	Content     string `gorm:"type:text" json:"content"`
	URL         string `gorm:"size:1024;uniqueIndex" json:"url"`
	ImageURL    string `gorm:"size:1024" json:"imageUrl"`
	Author      string `gorm:"size:256" json:"author"`

	PublishedAt *time.Time                  `gorm:"index" json:"publishedAt"`
	Category    string                      `gorm:"size:128;index" json:"category"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`

	ViewsCount int  `gorm:"default:0" json:"viewsCount"`
	IsFeatured bool `gorm:"default:false;index" json:"isFeatured"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Source{}, &Article{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// ---- 扫描链路使用的读写接口 ----

func (s *Store) FindSourceByID(id uint) (*Source, error) {
	src := &Source{}
	if err := s.DB.First(src, id).Error; err != nil {
		return nil, err
	}
	return src, nil
}

func (s *Store) ListActiveSources() ([]Source, error) {
	var list []Source
	if err := s.DB.Where("is_active = ?", true).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) ListActiveSourcesByType(typ string) ([]Source, error) {
	var list []Source
	if err := s.DB.Where("type = ? AND is_active = ?", typ, true).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) FindArticleByURL(url string) (*Article, error) {
	a := &Article{}
	err := s.DB.Where("url = ?", url).First(a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateArticle 入库一篇文章。并发扫描下两次 check-then-create 可能撞车，
// 依赖 url 的唯一索引兜底：唯一约束冲突视为“已存在”而不是错误。
func (s *Store) CreateArticle(a *Article) (bool, error) {
	a.Title = normalize.TruncateRunes(a.Title, 512)
	err := s.DB.Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateArticleTitle 只刷新标题：重扫时的低频更新策略，其它字段保持首次抓取的值
func (s *Store) UpdateArticleTitle(id uint, title string) error {
	return s.DB.Model(&Article{}).Where("id = ?", id).
		Update("title", normalize.TruncateRunes(title, 512)).Error
}

func (s *Store) CountArticlesForSource(id uint) (int64, error) {
	var n int64
	if err := s.DB.Model(&Article{}).Where("source_id = ?", id).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// FinishScan 每轮扫描结束后回写源的元数据：最后扫描时间 + 实际文章数
func (s *Store) FinishScan(sourceID uint, scannedAt time.Time) error {
	count, err := s.CountArticlesForSource(sourceID)
	if err != nil {
		return err
	}
	return s.DB.Model(&Source{}).Where("id = ?", sourceID).Updates(map[string]any{
		"last_scanned_at": scannedAt,
		"articles_count":  count,
	}).Error
}

// ---- 面向 API 层的 CRUD ----

func (s *Store) CreateSource(src *Source) error {
	if src.ScanFrequency == 0 {
		src.ScanFrequency = DefaultScanFrequency
	}
	return s.DB.Create(src).Error
}

func (s *Store) ListSources() ([]Source, error) {
	var list []Source
	if err := s.DB.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) UpdateSource(id uint, fields map[string]any) (*Source, error) {
	src, err := s.FindSourceByID(id)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.DB.Model(src).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return src, nil
}

// DeleteSource 删除源；文章由外键级联一并删除
func (s *Store) DeleteSource(id uint) error {
	src, err := s.FindSourceByID(id)
	if err != nil {
		return err
	}
	return s.DB.Delete(src).Error
}

// SourceArticles 按发布时间倒序分页返回某个源的文章
func (s *Store) SourceArticles(sourceID uint, page, limit int) ([]Article, int64, error) {
	if _, err := s.FindSourceByID(sourceID); err != nil {
		return nil, 0, err
	}
	page, limit = normalizePage(page, limit)

	var total int64
	q := s.DB.Model(&Article{}).Where("source_id = ?", sourceID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []Article
	err := q.Order("published_at DESC NULLS LAST").
		Offset((page - 1) * limit).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListArticles 按来源/分类筛选的分页列表，用 Redis 做 5 分钟缓存。
// 不做主动失效，靠短 TTL 自然过期，避免通配符删除带来的扫描开销。
func (s *Store) ListArticles(page, limit int, sourceID uint, category string) ([]Article, int64, error) {
	page, limit = normalizePage(page, limit)

	ctx := context.Background()
	cacheKey := fmt.Sprintf("articles:list:%d:%d:%d:%s", page, limit, sourceID, category)

	type cachedPage struct {
		List  []Article `json:"list"`
		Total int64     `json:"total"`
	}

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached cachedPage
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached.List, cached.Total, nil
			}
		}
	}

	q := s.DB.Model(&Article{})
	if sourceID != 0 {
		q = q.Where("source_id = ?", sourceID)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []Article
	err := q.Order("published_at DESC NULLS LAST").
		Offset((page - 1) * limit).Limit(limit).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}

	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(cachedPage{List: list, Total: total}); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, total, nil
}

func (s *Store) FeaturedArticles(limit int) ([]Article, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var list []Article
	err := s.DB.Where("is_featured = ?", true).
		Order("published_at DESC NULLS LAST").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) RecentArticles(limit int) ([]Article, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []Article
	err := s.DB.Order("published_at DESC NULLS LAST").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// GetArticle 读取详情并把浏览数 +1（读路径的副作用，不走扫描链路）
func (s *Store) GetArticle(id uint) (*Article, error) {
	a := &Article{}
	if err := s.DB.First(a, id).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(a).UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error; err != nil {
		return nil, err
	}
	a.ViewsCount++
	return a, nil
}

var ErrArticleExists = errors.New("article already exists")

// CreateArticleChecked 供 API 手工建稿使用：URL 已存在时返回冲突错误
func (s *Store) CreateArticleChecked(a *Article) error {
	err := s.DB.Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrArticleExists
	}
	return err
}

func (s *Store) DeleteArticle(id uint) error {
	a := &Article{}
	if err := s.DB.First(a, id).Error; err != nil {
		return err
	}
	return s.DB.Delete(a).Error
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page, limit
}
