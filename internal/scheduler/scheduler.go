package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/TechWatch/internal/scanner"
	"github.com/LJTian/TechWatch/internal/storage"
)

// scanPause 一轮调度里相邻两个源之间的停顿
const scanPause = 2 * time.Second

// SourceLister 提供待调度的活跃源列表
type SourceLister interface {
	ListActiveSources() ([]storage.Source, error)
}

// Scanner 单源扫描入口，feed 和 scraping 两个适配器都满足
type Scanner interface {
	ScanSource(sourceID uint) scanner.ScanResult
}

// Status 调度器对外暴露的状态
type Status struct {
	Running     bool    `json:"running"`
	ActiveTasks int     `json:"activeTasks"`
	NextRun     *string `json:"nextRun"`
}

// Scheduler 周期性地检查每个源是否到期并触发扫描。
// 全局触发周期是固定的；每个源按自己的 scanFrequency 判断到期，两者解耦，
// 运营侧可以单独调某个源的频率而不动全局节奏。
type Scheduler struct {
	cron  *cron.Cron
	store SourceLister
	feed  Scanner
	web   Scanner

	// 全局触发周期，只用于推算下一次运行时间
	interval time.Duration

	mu      sync.Mutex
	running bool

	// 串行化扫描轮次：定时触发和手动 run-now 不允许交叠
	runMu sync.Mutex

	now   func() time.Time
	sleep func(time.Duration)
}

func New(spec string, intervalMinutes int, store SourceLister, feed, web Scanner) (*Scheduler, error) {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}

	c := cron.New()

	s := &Scheduler{
		cron:     c,
		store:    store,
		feed:     feed,
		web:      web,
		interval: time.Duration(intervalMinutes) * time.Minute,
		now:      time.Now,
		sleep:    time.Sleep,
	}

	if _, err := c.AddFunc(spec, func() {
		log.Println("running scheduled scan...")
		s.RunScheduledScans()
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// Start 启动全局触发器；重复调用是空操作
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		log.Println("scheduler is already running")
		return
	}

	s.cron.Start()
	s.running = true
	log.Printf("scheduler started, next run: %s", s.nextRunTime())
}

// Stop 停掉后续触发；不打断正在进行的一轮扫描，重复调用是空操作
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		log.Println("scheduler is not running")
		return
	}

	s.cron.Stop()
	s.running = false
	log.Println("scheduler stopped")
}

// RunScheduledScans 检查全部活跃源，对到期的源按类型分发扫描，返回实际扫描数。
// 可以独立于调度器状态手动调用；整个轮次持有 runMu，与定时触发互斥。
func (s *Scheduler) RunScheduledScans() int {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	sources, err := s.store.ListActiveSources()
	if err != nil {
		log.Printf("scheduled scan: list sources error: %v", err)
		return 0
	}

	log.Printf("checking %d active sources...", len(sources))

	scanned := 0
	for i := range sources {
		src := &sources[i]
		if !s.shouldScan(src) {
			// 未到期的源静默跳过
			continue
		}

		log.Printf("scanning: %s", src.Name)

		var result scanner.ScanResult
		if src.Type == storage.SourceTypeFeed {
			result = s.feed.ScanSource(src.ID)
		} else {
			result = s.web.ScanSource(src.ID)
		}
		if len(result.Errors) > 0 {
			log.Printf("scan %s finished with %d errors: %v", src.Name, len(result.Errors), result.Errors)
		}

		scanned++
		s.sleep(scanPause)
	}

	log.Printf("scheduled scan complete: %d sources scanned", scanned)
	return scanned
}

// shouldScan 判断到期：从未扫过的源立即到期，否则看距上次扫描是否已过了该源的频率
func (s *Scheduler) shouldScan(src *storage.Source) bool {
	if src.LastScannedAt == nil {
		return true
	}

	freq := src.ScanFrequency
	if freq <= 0 {
		freq = storage.DefaultScanFrequency
	}

	return s.now().Sub(*src.LastScannedAt) >= time.Duration(freq)*time.Minute
}

// nextRunTime 向上取整到全局周期的下一个整点倍数
func (s *Scheduler) nextRunTime() string {
	intervalMin := int(s.interval / time.Minute)
	now := s.now()
	next := now.Truncate(time.Minute).
		Add(time.Duration(intervalMin-now.Minute()%intervalMin) * time.Minute)
	return next.Format("2006-01-02 15:04:05")
}

// GetStatus 返回运行状态；nextRun 只在运行中才有值
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running}
	if s.running {
		st.ActiveTasks = len(s.cron.Entries())
		next := s.nextRunTime()
		st.NextRun = &next
	}
	return st
}
