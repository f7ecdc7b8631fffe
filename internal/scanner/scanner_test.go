package scanner

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/LJTian/TechWatch/internal/storage"
)

// fakeStore 内存版记录存储，供适配器测试使用
type fakeStore struct {
	sources  map[uint]*storage.Source
	articles map[string]*storage.Article
	nextID   uint

	listErr error
	// CreateArticle 对这个 URL 返回错误，验证单条失败不拖垮整轮扫描
	failURL string
}

func newFakeStore(sources ...*storage.Source) *fakeStore {
	f := &fakeStore{
		sources:  map[uint]*storage.Source{},
		articles: map[string]*storage.Article{},
	}
	for _, src := range sources {
		f.sources[src.ID] = src
	}
	return f
}

func (f *fakeStore) FindSourceByID(id uint) (*storage.Source, error) {
	src, ok := f.sources[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return src, nil
}

func (f *fakeStore) ListActiveSourcesByType(typ string) ([]storage.Source, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var list []storage.Source
	for _, src := range f.sources {
		if src.Type == typ && src.IsActive {
			list = append(list, *src)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *fakeStore) FindArticleByURL(url string) (*storage.Article, error) {
	a, ok := f.articles[url]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (f *fakeStore) CreateArticle(a *storage.Article) (bool, error) {
	if f.failURL != "" && a.URL == f.failURL {
		return false, errors.New("insert failed")
	}
	if _, ok := f.articles[a.URL]; ok {
		return false, nil
	}
	f.nextID++
	a.ID = f.nextID
	copied := *a
	f.articles[a.URL] = &copied
	return true, nil
}

func (f *fakeStore) UpdateArticleTitle(id uint, title string) error {
	for _, a := range f.articles {
		if a.ID == id {
			a.Title = title
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeStore) FinishScan(sourceID uint, scannedAt time.Time) error {
	src, ok := f.sources[sourceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	count := 0
	for _, a := range f.articles {
		if a.SourceID == sourceID {
			count++
		}
	}
	src.LastScannedAt = &scannedAt
	src.ArticlesCount = count
	return nil
}

func (f *fakeStore) articleByURL(url string) *storage.Article {
	return f.articles[url]
}
