package rag

import (
	"context"
	"sync"
	"time"

	"docqa/internal/domain/cache"
	applog "docqa/internal/platform/log"
)

// 缓存层名称
const (
	TierQuery     = "query"
	TierEmbedding = "embedding"
	TierResponse  = "response"
)

// CacheConfig CacheManager 配置，零值字段使用默认值
type CacheConfig struct {
	QueryTTL          time.Duration
	QueryCapacity     int
	EmbeddingTTL      time.Duration
	EmbeddingCapacity int
	ResponseTTL       time.Duration
	ResponseCapacity  int
	SweepInterval     time.Duration
	Now               func() time.Time // 可选，测试注入时钟
}

// DefaultCacheConfig 默认三层缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		QueryTTL:          time.Hour,
		QueryCapacity:     1000,
		EmbeddingTTL:      24 * time.Hour,
		EmbeddingCapacity: 5000,
		ResponseTTL:       30 * time.Minute,
		ResponseCapacity:  1000,
		SweepInterval:     5 * time.Minute,
	}
}

// CacheStats 缓存统计快照
type CacheStats struct {
	cache.Metrics
	Tiers map[string]cache.TierStats `json:"tiers"`
}

// CacheManager 进程内三层缓存（查询结果 / Embedding / 任意响应）。
// 启动时创建一次，通过依赖注入传给使用方。
type CacheManager struct {
	queries    *cache.Tier[[]SearchResult]
	embeddings *cache.Tier[[]float32]
	responses  *cache.Tier[any]
	metrics    *cache.Tracker

	sweepInterval time.Duration
	startOnce     sync.Once
	stopOnce      sync.Once
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(cfg CacheConfig) *CacheManager {
	d := DefaultCacheConfig()
	if cfg.QueryTTL <= 0 {
		cfg.QueryTTL = d.QueryTTL
	}
	if cfg.QueryCapacity <= 0 {
		cfg.QueryCapacity = d.QueryCapacity
	}
	if cfg.EmbeddingTTL <= 0 {
		cfg.EmbeddingTTL = d.EmbeddingTTL
	}
	if cfg.EmbeddingCapacity <= 0 {
		cfg.EmbeddingCapacity = d.EmbeddingCapacity
	}
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = d.ResponseTTL
	}
	if cfg.ResponseCapacity <= 0 {
		cfg.ResponseCapacity = d.ResponseCapacity
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	metrics := cache.NewTracker(cfg.Now)
	return &CacheManager{
		queries: cache.NewTier[[]SearchResult](cache.TierOptions{
			Name: TierQuery, Capacity: cfg.QueryCapacity, DefaultTTL: cfg.QueryTTL, Metrics: metrics, Now: cfg.Now,
		}),
		embeddings: cache.NewTier[[]float32](cache.TierOptions{
			Name: TierEmbedding, Capacity: cfg.EmbeddingCapacity, DefaultTTL: cfg.EmbeddingTTL, Metrics: metrics, Now: cfg.Now,
		}),
		responses: cache.NewTier[any](cache.TierOptions{
			Name: TierResponse, Capacity: cfg.ResponseCapacity, DefaultTTL: cfg.ResponseTTL, Metrics: metrics, Now: cfg.Now,
		}),
		metrics:       metrics,
		sweepInterval: cfg.SweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// Queries 查询结果缓存层
func (m *CacheManager) Queries() *cache.Tier[[]SearchResult] { return m.queries }

// Embeddings Embedding 缓存层
func (m *CacheManager) Embeddings() *cache.Tier[[]float32] { return m.embeddings }

// Responses 任意响应缓存层
func (m *CacheManager) Responses() *cache.Tier[any] { return m.responses }

// Start 启动后台过期清扫，ctx 取消或调用 Stop 时退出。重复调用无效。
func (m *CacheManager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.sweepLoop(ctx)
		applog.Info("[RAG/Cache] Sweeper started", "interval", m.sweepInterval.String())
	})
}

// Stop 停止后台清扫并等待其退出
func (m *CacheManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *CacheManager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep 清除三层中所有过期条目，返回清除总数
func (m *CacheManager) Sweep() int {
	q := m.queries.Sweep()
	e := m.embeddings.Sweep()
	r := m.responses.Sweep()

	if total := q + e + r; total > 0 {
		applog.Debug("[RAG/Cache] Swept expired entries",
			"query", q,
			"embedding", e,
			"response", r,
		)
		return total
	}
	return 0
}

// Stats 返回只读统计快照
func (m *CacheManager) Stats() CacheStats {
	tiers := map[string]cache.TierStats{
		TierQuery:     m.queries.Stats(),
		TierEmbedding: m.embeddings.Stats(),
		TierResponse:  m.responses.Stats(),
	}
	total := 0
	for _, s := range tiers {
		total += s.Size
	}
	return CacheStats{
		Metrics: m.metrics.Snapshot(total),
		Tiers:   tiers,
	}
}

// Clear 清空三层缓存，不重置指标
func (m *CacheManager) Clear() {
	m.queries.Clear()
	m.embeddings.Clear()
	m.responses.Clear()
	applog.Info("[RAG/Cache] All caches cleared")
}

// ResetMetrics 重置命中统计
func (m *CacheManager) ResetMetrics() {
	m.metrics.Reset()
}
