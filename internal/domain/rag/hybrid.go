package rag

import (
	"context"
	"strings"
	"sync"
	"time"

	"docqa/internal/domain/cache"
	applog "docqa/internal/platform/log"
)

// queryCacheKey 查询缓存 key = hash(normalizedQuery, filters, limit)
func queryCacheKey(query string, filters *Filters, limit int) string {
	return cache.CompositeKey(TierQuery, struct {
		Query   string   `json:"query"`
		Filters *Filters `json:"filters,omitempty"`
		Limit   int      `json:"limit"`
	}{
		Query:   cache.Normalize(query),
		Filters: filters.canonical(),
		Limit:   limit,
	})
}

// HybridSearch 混合检索：查询缓存 -> 向量检索 + 关键词检索 -> 加权融合 -> 补全元数据 -> 回写缓存
func (e *Engine) HybridSearch(ctx context.Context, query string, filters *Filters, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	key := queryCacheKey(query, filters, limit)
	if cached, ok := e.caches.queries.Get(key); ok {
		applog.Debug("[RAG] Query cache hit", "query", query)
		return cloneResults(cached), nil
	}

	start := time.Now()
	corpus, meta, err := e.loadCorpus(ctx, filters)
	if err != nil {
		return nil, err
	}

	// 并行执行向量检索与关键词检索
	var (
		wg          sync.WaitGroup
		vectorHits  []SearchResult
		vectorErr   error
		keywordHits []SearchResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		var queryVector []float32
		queryVector, vectorErr = e.embedQuery(ctx, query)
		if vectorErr != nil {
			return
		}
		vectorHits, vectorErr = vectorScores(ctx, queryVector, corpus, e.config.SimilarityThreshold, e.config.ShardSize)
		// 向量路与 SearchSimilar 一致，只取前 limit 条参与融合
		vectorHits = truncate(vectorHits, limit)
	}()
	go func() {
		defer wg.Done()
		keywordHits = keywordScores(query, corpus)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 向量检索失败时降级为关键词检索，降级结果不写入缓存
	degraded := vectorErr != nil
	if degraded {
		applog.Warn("[RAG] Vector search failed, falling back to keyword results", "error", vectorErr)
	}

	merged := fuse(vectorHits, keywordHits, e.config.VectorWeight, e.config.KeywordWeight, limit)
	meta.enrich(ctx, merged)

	if !degraded {
		e.caches.queries.Set(key, cloneResults(merged), 0)
	}

	applog.Info("[RAG] Hybrid search",
		"query", query,
		"corpus", len(corpus),
		"vector_count", len(vectorHits),
		"keyword_count", len(keywordHits),
		"merged_count", len(merged),
		"degraded", degraded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return merged, nil
}

// fuse 加权融合：同一 ChunkID 的向量分与关键词分相加，
// 因此两路都命中的片段得分高于任一单路。按分数降序、ChunkID 升序排序后截断。
func fuse(vectorHits, keywordHits []SearchResult, vectorWeight, keywordWeight float64, limit int) []SearchResult {
	scores := make(map[string]*SearchResult, len(vectorHits)+len(keywordHits))
	order := make([]string, 0, len(vectorHits)+len(keywordHits))

	add := func(hits []SearchResult, weight float64) {
		for _, hit := range hits {
			if existing, ok := scores[hit.ChunkID]; ok {
				existing.Score += hit.Score * weight
				continue
			}
			r := hit
			r.Score = hit.Score * weight
			scores[hit.ChunkID] = &r
			order = append(order, hit.ChunkID)
		}
	}
	add(vectorHits, vectorWeight)
	add(keywordHits, keywordWeight)

	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, *scores[id])
	}
	sortResults(results)
	return truncate(results, limit)
}
