// Package metrics 将检索引擎的缓存统计与请求延迟暴露为 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docqa/internal/domain/rag"
)

const namespace = "docqa"

// StatsSource 提供缓存统计快照
type StatsSource interface {
	GetCacheStats() rag.CacheStats
}

// CacheCollector 在抓取时读取缓存快照，不在热路径上维护额外计数
type CacheCollector struct {
	source StatsSource

	lookups   *prometheus.Desc
	hitRate   *prometheus.Desc
	entries   *prometheus.Desc
	capacity  *prometheus.Desc
	evictions *prometheus.Desc
}

// NewCacheCollector 创建缓存指标采集器
func NewCacheCollector(source StatsSource) *CacheCollector {
	return &CacheCollector{
		source: source,
		lookups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "lookups"),
			"Cache lookups across all tiers since the last metrics reset",
			nil, nil,
		),
		hitRate: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hit_rate"),
			"Cache hit rate across all tiers since the last metrics reset",
			nil, nil,
		),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Number of entries per cache tier",
			[]string{"tier"}, nil,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "capacity"),
			"Maximum entries per cache tier",
			[]string{"tier"}, nil,
		),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "evictions_total"),
			"LRU evictions per cache tier",
			[]string{"tier"}, nil,
		),
	}
}

// Describe 实现 prometheus.Collector
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.lookups
	ch <- c.hitRate
	ch <- c.entries
	ch <- c.capacity
	ch <- c.evictions
}

// Collect 实现 prometheus.Collector
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.GetCacheStats()

	// 计数可被 ResetMetrics 清零，因此以 gauge 暴露
	ch <- prometheus.MustNewConstMetric(c.lookups, prometheus.GaugeValue, float64(stats.QueryCount))
	ch <- prometheus.MustNewConstMetric(c.hitRate, prometheus.GaugeValue, stats.CacheHitRate)
	for tier, s := range stats.Tiers {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Size), tier)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), tier)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), tier)
	}
}

// SearchMetrics 检索请求计数与延迟
type SearchMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewSearchMetrics 创建并注册检索请求指标
func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	m := &SearchMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Search requests by mode and outcome",
		}, []string{"mode", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search latency by mode",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms ~ 8s
		}, []string{"mode"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

// Observe 记录一次检索。nil 接收者为空操作。
func (m *SearchMetrics) Observe(mode string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.requests.WithLabelValues(mode, status).Inc()
	m.latency.WithLabelValues(mode).Observe(elapsed.Seconds())
}
