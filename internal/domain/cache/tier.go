package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	applog "docqa/internal/platform/log"
)

// Tier 单层缓存：按条目 TTL 过期 + 容量上限 LRU 淘汰。
// 每个 Tier 一把锁，Get/Set/Sweep 的读改写都在锁内完成。
type Tier[T any] struct {
	name       string
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time
	metrics    *Tracker

	mu        sync.Mutex
	entries   *simplelru.LRU[string, *Entry[T]]
	evictions int64
}

// TierStats 单层缓存统计
type TierStats struct {
	Size       int           `json:"size"`
	Capacity   int           `json:"capacity"`
	DefaultTTL time.Duration `json:"default_ttl"`
	Evictions  int64         `json:"evictions"`
}

// TierOptions 创建 Tier 的参数
type TierOptions struct {
	Name       string
	Capacity   int
	DefaultTTL time.Duration
	Metrics    *Tracker         // 可选
	Now        func() time.Time // 可选，测试注入时钟
}

// NewTier 创建缓存层
func NewTier[T any](opts TierOptions) *Tier[T] {
	if opts.Capacity <= 0 {
		opts.Capacity = 1000
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	// 容量由 Set 在插入前自行淘汰，simplelru 本身永远不会触发淘汰
	entries, _ := simplelru.NewLRU[string, *Entry[T]](opts.Capacity, nil)

	return &Tier[T]{
		name:       opts.Name,
		capacity:   opts.Capacity,
		defaultTTL: opts.DefaultTTL,
		now:        opts.Now,
		metrics:    opts.Metrics,
		entries:    entries,
	}
}

// Name 返回层名称
func (t *Tier[T]) Name() string {
	return t.name
}

// Get 读取未过期的值
func (t *Tier[T]) Get(key string) (T, bool) {
	entry, ok := t.Lookup(key)
	return entry.Data, ok
}

// Lookup 读取条目并刷新访问信息，返回刷新后的条目副本。
// 找到但已过期的条目会被删除并计为未命中。
func (t *Tier[T]) Lookup(key string) (Entry[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries.Peek(key)
	if !ok {
		t.metrics.RecordMiss()
		return Entry[T]{}, false
	}

	now := t.now()
	if entry.Expired(now) {
		t.entries.Remove(key)
		t.metrics.RecordMiss()
		applog.Debug("[Cache] Expired on read", "tier", t.name, "key", key)
		return Entry[T]{}, false
	}

	// Get 将条目移到 LRU 队首
	t.entries.Get(key)
	entry.LastAccessed = now
	entry.AccessCount++
	t.metrics.RecordHit()

	return *entry, true
}

// Set 写入条目；ttl <= 0 时使用层默认 TTL。
// 新 key 且已满时先淘汰最久未访问的条目再插入，任何时刻都不超过容量。
func (t *Tier[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.entries.Contains(key) && t.entries.Len() >= t.capacity {
		if evicted, _, ok := t.entries.RemoveOldest(); ok {
			t.evictions++
			applog.Debug("[Cache] Evicted LRU entry", "tier", t.name, "key", evicted)
		}
	}

	now := t.now()
	t.entries.Add(key, &Entry[T]{
		Data:         value,
		CreatedAt:    now,
		TTL:          ttl,
		LastAccessed: now,
	})
}

// Delete 删除条目
func (t *Tier[T]) Delete(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Remove(key)
}

// Sweep 清除所有过期条目，返回清除数量
func (t *Tier[T]) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for _, key := range t.entries.Keys() {
		entry, ok := t.entries.Peek(key)
		if ok && entry.Expired(now) {
			t.entries.Remove(key)
			removed++
		}
	}
	return removed
}

// Clear 清空本层
func (t *Tier[T]) Clear() {
	t.mu.Lock()
	t.entries.Purge()
	t.mu.Unlock()
}

// Len 当前条目数（包含尚未被清扫的过期条目）
func (t *Tier[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Len()
}

// Stats 返回本层统计快照
func (t *Tier[T]) Stats() TierStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TierStats{
		Size:       t.entries.Len(),
		Capacity:   t.capacity,
		DefaultTTL: t.defaultTTL,
		Evictions:  t.evictions,
	}
}
