package rag

import "time"

// Embedding provider 名称
const (
	ProviderOpenAI   = "openai"
	ProviderFallback = "fallback" // 仅测试/离线使用
)

// Config RAG 检索引擎配置
type Config struct {
	// 融合与检索
	VectorWeight        float64 `json:"vector_weight"`
	KeywordWeight       float64 `json:"keyword_weight"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	DefaultLimit        int     `json:"default_limit"`
	ShardSize           int     `json:"shard_size"` // 语料超过该条数时分片并行打分

	// Embedding
	EmbeddingProvider     string `json:"embedding_provider,omitempty"`
	EmbeddingModel        string `json:"embedding_model,omitempty"`
	EmbeddingDims         int    `json:"embedding_dims,omitempty"`
	EmbeddingTimeoutMs    int    `json:"embedding_timeout_ms"`
	EmbeddingBatchSize    int    `json:"embedding_batch_size"`
	EmbeddingBatchDelayMs int    `json:"embedding_batch_delay_ms"`
	EmbeddingMaxRetries   int    `json:"embedding_max_retries"`

	// 缓存配置（TTL 单位：秒）
	QueryCacheTTL        int    `json:"query_cache_ttl"`
	QueryCacheSize       int    `json:"query_cache_size"`
	EmbeddingCacheTTL    int    `json:"embedding_cache_ttl"`
	EmbeddingCacheSize   int    `json:"embedding_cache_size"`
	ResponseCacheTTL     int    `json:"response_cache_ttl"`
	ResponseCacheSize    int    `json:"response_cache_size"`
	CacheSweepInterval   int    `json:"cache_sweep_interval"`
	EmbeddingStoreTTL    int    `json:"embedding_store_ttl"` // Redis 二级缓存，0=不启用
	EmbeddingStorePrefix string `json:"embedding_store_prefix,omitempty"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		VectorWeight:          0.7,
		KeywordWeight:         0.3,
		SimilarityThreshold:   0.7,
		DefaultLimit:          10,
		ShardSize:             4096,
		EmbeddingProvider:     ProviderOpenAI,
		EmbeddingModel:        "text-embedding-3-small",
		EmbeddingDims:         1536,
		EmbeddingTimeoutMs:    30000,
		EmbeddingBatchSize:    10,
		EmbeddingBatchDelayMs: 1000,
		EmbeddingMaxRetries:   2,
		QueryCacheTTL:         3600,
		QueryCacheSize:        1000,
		EmbeddingCacheTTL:     86400,
		EmbeddingCacheSize:    5000,
		ResponseCacheTTL:      1800,
		ResponseCacheSize:     1000,
		CacheSweepInterval:    300,
		EmbeddingStoreTTL:     7 * 86400,
		EmbeddingStorePrefix:  "rag:emb:",
	}
}

// withDefaults 用默认值补齐非法的数量类配置；权重与阈值允许为 0，按原值使用
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	out := *c
	if out.DefaultLimit <= 0 {
		out.DefaultLimit = d.DefaultLimit
	}
	if out.ShardSize <= 0 {
		out.ShardSize = d.ShardSize
	}
	if out.EmbeddingTimeoutMs <= 0 {
		out.EmbeddingTimeoutMs = d.EmbeddingTimeoutMs
	}
	if out.EmbeddingBatchSize <= 0 {
		out.EmbeddingBatchSize = d.EmbeddingBatchSize
	}
	if out.EmbeddingBatchDelayMs < 0 {
		out.EmbeddingBatchDelayMs = d.EmbeddingBatchDelayMs
	}
	return &out
}

// EmbeddingTimeout 单次 Embedding 调用超时
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.EmbeddingTimeoutMs) * time.Millisecond
}

// EmbeddingBatchDelay 批次间隔
func (c *Config) EmbeddingBatchDelay() time.Duration {
	return time.Duration(c.EmbeddingBatchDelayMs) * time.Millisecond
}

// CacheConfig 生成 CacheManager 配置
func (c *Config) CacheConfig() CacheConfig {
	return CacheConfig{
		QueryTTL:          seconds(c.QueryCacheTTL),
		QueryCapacity:     c.QueryCacheSize,
		EmbeddingTTL:      seconds(c.EmbeddingCacheTTL),
		EmbeddingCapacity: c.EmbeddingCacheSize,
		ResponseTTL:       seconds(c.ResponseCacheTTL),
		ResponseCapacity:  c.ResponseCacheSize,
		SweepInterval:     seconds(c.CacheSweepInterval),
	}
}

// UsesFallbackEmbeddings 是否显式配置了离线 Embedding
func (c *Config) UsesFallbackEmbeddings() bool {
	return c.EmbeddingProvider == ProviderFallback
}

// HasEmbeddingStore 是否启用 Redis 二级 Embedding 缓存
func (c *Config) HasEmbeddingStore() bool {
	return c.EmbeddingStoreTTL > 0
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
