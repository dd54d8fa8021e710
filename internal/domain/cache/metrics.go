package cache

import (
	"sync"
	"time"
)

// Metrics 缓存运行指标快照
type Metrics struct {
	QueryCount     int64     `json:"query_count"`
	CacheHitRate   float64   `json:"cache_hit_rate"`
	TotalCacheSize int       `json:"total_cache_size"`
	LastReset      time.Time `json:"last_reset"`
}

// Tracker 进程级命中统计，所有 Tier 共享一个实例。
// 零值不可用，使用 NewTracker 创建；nil Tracker 上的记录操作为空操作。
type Tracker struct {
	mu        sync.Mutex
	lookups   int64
	hits      int64
	lastReset time.Time
	now       func() time.Time
}

// NewTracker 创建指标统计器，now 为 nil 时使用 time.Now
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, lastReset: now()}
}

// RecordHit 记录一次命中
func (t *Tracker) RecordHit() {
	t.record(true)
}

// RecordMiss 记录一次未命中
func (t *Tracker) RecordMiss() {
	t.record(false)
}

func (t *Tracker) record(hit bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.lookups++
	if hit {
		t.hits++
	}
	t.mu.Unlock()
}

// Snapshot 返回当前指标，totalSize 由调用方汇总各 Tier 大小后传入
func (t *Tracker) Snapshot(totalSize int) Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := Metrics{
		QueryCount:     t.lookups,
		TotalCacheSize: totalSize,
		LastReset:      t.lastReset,
	}
	if t.lookups > 0 {
		m.CacheHitRate = float64(t.hits) / float64(t.lookups)
	}
	return m
}

// Reset 清零计数（运维操作）
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.lookups = 0
	t.hits = 0
	t.lastReset = t.now()
	t.mu.Unlock()
}
