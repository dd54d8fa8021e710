package rag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"docqa/internal/domain/batch"
	"docqa/internal/domain/cache"
	applog "docqa/internal/platform/log"
)

// Engine 混合检索与缓存引擎
type Engine struct {
	config   *Config
	caches   *CacheManager
	docs     DocumentStore
	provider EmbeddingProvider // 可选，为 nil 时混合检索退化为关键词检索
	fallback EmbeddingProvider // 可选，显式配置的离线 Embedding
	store    EmbeddingStore    // 可选，二级 Embedding 缓存
}

// NewEngine 创建检索引擎
func NewEngine(config *Config, caches *CacheManager, docs DocumentStore, provider EmbeddingProvider) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if caches == nil {
		caches = NewCacheManager(config.CacheConfig())
	}
	return &Engine{
		config:   config.withDefaults(),
		caches:   caches,
		docs:     docs,
		provider: provider,
	}
}

// SetEmbeddingStore 设置二级 Embedding 缓存
func (e *Engine) SetEmbeddingStore(s EmbeddingStore) {
	e.store = s
}

// SetFallback 设置离线 Embedding，主 provider 不可用时使用（仅测试/离线模式）
func (e *Engine) SetFallback(p EmbeddingProvider) {
	e.fallback = p
}

// Caches 返回缓存管理器
func (e *Engine) Caches() *CacheManager {
	return e.caches
}

// GetCacheStats 缓存统计快照
func (e *Engine) GetCacheStats() CacheStats {
	return e.caches.Stats()
}

// ClearAllCaches 清空全部缓存（管理/测试用），二级 Embedding 缓存支持失效时一并清除
func (e *Engine) ClearAllCaches(ctx context.Context) {
	e.caches.Clear()
	if inv, ok := e.store.(EmbeddingInvalidator); ok {
		deleted := inv.InvalidateAll(ctx)
		applog.Info("[RAG] Embedding store invalidated", "deleted", deleted)
	}
}

// ResetCacheMetrics 重置命中统计，缓存内容保留
func (e *Engine) ResetCacheMetrics() {
	e.caches.ResetMetrics()
}

// ResponseKey 生成响应缓存 key
func ResponseKey(kind string, request any) string {
	return cache.CompositeKey(TierResponse+":"+kind, request)
}

// GetResponse 读取响应缓存
func (e *Engine) GetResponse(key string) (any, bool) {
	return e.caches.responses.Get(key)
}

// SetResponse 写入响应缓存，ttl <= 0 使用默认 30 分钟
func (e *Engine) SetResponse(key string, value any, ttl time.Duration) {
	e.caches.responses.Set(key, value, ttl)
}

// SearchSimilar 纯向量检索
func (e *Engine) SearchSimilar(ctx context.Context, query string, opts SimilarOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	start := time.Now()

	threshold := e.config.SimilarityThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	queryVector, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	corpus, meta, err := e.loadCorpus(ctx, opts.Filters)
	if err != nil {
		return nil, err
	}

	results, err := vectorScores(ctx, queryVector, corpus, threshold, e.config.ShardSize)
	if err != nil {
		return nil, err
	}
	results = truncate(results, limit)
	meta.enrich(ctx, results)

	applog.Info("[RAG] Vector search",
		"query", query,
		"corpus", len(corpus),
		"threshold", threshold,
		"hits", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// KeywordSearch 纯关键词检索，返回全部分数 > 0 的片段
func (e *Engine) KeywordSearch(ctx context.Context, query string, filters *Filters) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	corpus, meta, err := e.loadCorpus(ctx, filters)
	if err != nil {
		return nil, err
	}
	results := keywordScores(query, corpus)
	meta.enrich(ctx, results)
	return results, nil
}

// EmbedTexts 批量生成 Embedding 并写入缓存。
// 未命中的文本按批并发调用 provider，批间插入固定间隔以遵守外部配额。
func (e *Engine) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if v, ok := e.cachedEmbedding(ctx, cache.Normalize(text)); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	generated, err := batch.Process(ctx, missing, func(ctx context.Context, i int) ([]float32, error) {
		return e.generateEmbedding(ctx, cache.Normalize(texts[i]), texts[i])
	}, batch.Options{
		BatchSize:  e.config.EmbeddingBatchSize,
		BatchDelay: e.config.EmbeddingBatchDelay(),
	})
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		vectors[i] = generated[j]
	}

	applog.Info("[RAG] Texts embedded", "total", len(texts), "generated", len(missing))
	return vectors, nil
}

// embedQuery 获取文本向量：L1 缓存 -> 二级缓存 -> provider（带超时）-> 回写
func (e *Engine) embedQuery(ctx context.Context, text string) ([]float32, error) {
	key := cache.Normalize(text)
	if v, ok := e.cachedEmbedding(ctx, key); ok {
		return v, nil
	}
	return e.generateEmbedding(ctx, key, text)
}

// generateEmbedding 调用 provider 生成向量并写入两级缓存
func (e *Engine) generateEmbedding(ctx context.Context, key, text string) ([]float32, error) {
	vector, err := e.callProvider(ctx, e.provider, text)
	if err != nil {
		if e.fallback == nil {
			return nil, err
		}
		applog.Warn("[RAG] Embedding provider failed, using fallback embeddings", "error", err)
		// 离线向量不写入缓存，避免污染真实 Embedding
		return e.callProvider(ctx, e.fallback, text)
	}

	// 缓存持有独立副本，调用方修改返回值不影响缓存
	cached := slices.Clone(vector)
	e.caches.embeddings.Set(key, cached, 0)
	if e.store != nil {
		e.store.Set(ctx, key, cached)
	}
	return vector, nil
}

func (e *Engine) cachedEmbedding(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := e.caches.embeddings.Get(key); ok {
		return slices.Clone(v), true
	}
	if e.store == nil {
		return nil, false
	}
	v, ok := e.store.Get(ctx, key)
	if !ok {
		return nil, false
	}
	e.caches.embeddings.Set(key, v, 0)
	return slices.Clone(v), true
}

func (e *Engine) callProvider(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", ErrProviderUnavailable)
	}

	vectors, err := batch.WithTimeout(ctx, e.config.EmbeddingTimeout(), func(ctx context.Context) ([][]float32, error) {
		return p.Embed(ctx, []string{text})
	})
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrOperationTimeout) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrProviderUnavailable)
	}
	return vectors[0], nil
}

// loadCorpus 读取（按文档 ID 预过滤的）语料，再按作者/日期过滤。
// 语料整体读取失败是唯一向调用方传播的检索错误。
func (e *Engine) loadCorpus(ctx context.Context, filters *Filters) ([]EmbeddingRecord, *metadataResolver, error) {
	meta := newMetadataResolver(e.docs)
	if e.docs == nil {
		return nil, meta, fmt.Errorf("%w: no document store configured", ErrCorpusUnavailable)
	}

	records, err := e.docs.ListChunks(ctx, filters.documentIDs())
	if err != nil {
		return nil, meta, fmt.Errorf("%w: %v", ErrCorpusUnavailable, err)
	}
	if !filters.needsMetadata() {
		return records, meta, nil
	}

	filtered := records[:0:0]
	for i := range records {
		m, err := meta.lookup(ctx, records[i].DocumentID)
		if err != nil {
			continue
		}
		if filters.match(m) {
			filtered = append(filtered, records[i])
		}
	}
	return filtered, meta, nil
}

// metadataResolver 单次查询内的元数据查找，按文档 ID 记忆结果
type metadataResolver struct {
	docs DocumentStore
	memo map[string]metadataLookup
}

type metadataLookup struct {
	meta *DocumentMetadata
	err  error
}

func newMetadataResolver(docs DocumentStore) *metadataResolver {
	return &metadataResolver{docs: docs, memo: make(map[string]metadataLookup)}
}

func (r *metadataResolver) lookup(ctx context.Context, documentID string) (*DocumentMetadata, error) {
	if got, ok := r.memo[documentID]; ok {
		return got.meta, got.err
	}

	var (
		meta *DocumentMetadata
		err  error
	)
	if r.docs == nil {
		err = fmt.Errorf("%w: no document store", ErrEnrichmentFailure)
	} else {
		meta, err = r.docs.GetMetadata(ctx, documentID)
		if err == nil && meta == nil {
			err = ErrDocumentNotFound
		}
		if err != nil {
			err = fmt.Errorf("%w: document %s: %v", ErrEnrichmentFailure, documentID, err)
		}
	}

	r.memo[documentID] = metadataLookup{meta: meta, err: err}
	return meta, err
}

// enrich 为结果补全标题/作者；查找失败时使用占位元数据，结果照常返回
func (r *metadataResolver) enrich(ctx context.Context, results []SearchResult) {
	for i := range results {
		meta, err := r.lookup(ctx, results[i].DocumentID)
		if err != nil {
			applog.Warn("[RAG] Metadata enrichment failed, using placeholder", "chunk_id", results[i].ChunkID, "error", err)
			results[i].Metadata = ResultMetadata{Title: UnknownTitle, Author: UnknownAuthor, Page: 1}
			continue
		}
		results[i].Metadata.Title = meta.Title
		results[i].Metadata.Author = meta.Author
	}
}
