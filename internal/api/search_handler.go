package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docqa/internal/domain/rag"
	applog "docqa/internal/platform/log"
	"docqa/internal/platform/metrics"
)

// Retriever 检索引擎对外能力
type Retriever interface {
	HybridSearch(ctx context.Context, query string, filters *rag.Filters, limit int) ([]rag.SearchResult, error)
	SearchSimilar(ctx context.Context, query string, opts rag.SimilarOptions) ([]rag.SearchResult, error)
	KeywordSearch(ctx context.Context, query string, filters *rag.Filters) ([]rag.SearchResult, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	GetCacheStats() rag.CacheStats
	ClearAllCaches(ctx context.Context)
	ResetCacheMetrics()
	GetResponse(key string) (any, bool)
	SetResponse(key string, value any, ttl time.Duration)
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query     string       `json:"query"`
	Filters   *rag.Filters `json:"filters,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Threshold *float64     `json:"threshold,omitempty"` // 仅向量检索
}

// SearchResponse 检索响应
type SearchResponse struct {
	Query   string             `json:"query"`
	Mode    string             `json:"mode"`
	Results []rag.SearchResult `json:"results"`
	Count   int                `json:"count"`
}

// WarmRequest Embedding 预热请求
type WarmRequest struct {
	Texts []string `json:"texts"`
}

// WarmResponse Embedding 预热结果
type WarmResponse struct {
	Count int `json:"count"`
	Dims  int `json:"dims"`
}

// 检索模式
const (
	modeHybrid  = "hybrid"
	modeVector  = "vector"
	modeKeyword = "keyword"
)

// SearchHandler 检索与缓存管理 API
type SearchHandler struct {
	retriever Retriever
	metrics   *metrics.SearchMetrics
	timeout   time.Duration
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(retriever Retriever, m *metrics.SearchMetrics, timeout time.Duration) *SearchHandler {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &SearchHandler{
		retriever: retriever,
		metrics:   m,
		timeout:   timeout,
	}
}

// RegisterRoutes 注册检索路由
func (h *SearchHandler) RegisterRoutes(r chi.Router) {
	r.Route("/rag", func(r chi.Router) {
		r.Post("/search", h.Hybrid)
		r.Post("/search/similar", h.Similar)
		r.Post("/search/keyword", h.Keyword)

		r.Post("/embeddings/warm", h.WarmEmbeddings)

		r.Get("/cache/stats", h.CacheStats)
		r.Delete("/cache", h.ClearCache)
		r.Delete("/cache/metrics", h.ResetCacheMetrics)
	})
}

// Hybrid 混合检索
func (h *SearchHandler) Hybrid(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, modeHybrid, func(ctx context.Context, req *SearchRequest) ([]rag.SearchResult, error) {
		return h.retriever.HybridSearch(ctx, req.Query, req.Filters, req.Limit)
	})
}

// Similar 纯向量检索，整个响应经响应缓存复用
func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, modeVector, func(ctx context.Context, req *SearchRequest) ([]rag.SearchResult, error) {
		key := rag.ResponseKey(modeVector, req)
		if cached, ok := h.retriever.GetResponse(key); ok {
			if results, ok := cached.([]rag.SearchResult); ok {
				return results, nil
			}
		}

		results, err := h.retriever.SearchSimilar(ctx, req.Query, rag.SimilarOptions{
			Filters:   req.Filters,
			Threshold: req.Threshold,
			Limit:     req.Limit,
		})
		if err != nil {
			return nil, err
		}
		h.retriever.SetResponse(key, results, 0)
		return results, nil
	})
}

// Keyword 纯关键词检索
func (h *SearchHandler) Keyword(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, modeKeyword, func(ctx context.Context, req *SearchRequest) ([]rag.SearchResult, error) {
		results, err := h.retriever.KeywordSearch(ctx, req.Query, req.Filters)
		if err != nil {
			return nil, err
		}
		if req.Limit > 0 && len(results) > req.Limit {
			results = results[:req.Limit]
		}
		return results, nil
	})
}

func (h *SearchHandler) serve(w http.ResponseWriter, r *http.Request, mode string, search func(ctx context.Context, req *SearchRequest) ([]rag.SearchResult, error)) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	results, err := search(ctx, &req)
	h.metrics.Observe(mode, err, time.Since(start))
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			applog.Error("[RAG] Search failed", "mode", mode, "error", err)
		}
		writeError(w, status, err.Error())
		return
	}
	if results == nil {
		results = []rag.SearchResult{}
	}

	writeJSON(w, http.StatusOK, &SearchResponse{
		Query:   req.Query,
		Mode:    mode,
		Results: results,
		Count:   len(results),
	})
}

// CacheStats 缓存统计
func (h *SearchHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.retriever.GetCacheStats())
}

// ClearCache 清空全部缓存
func (h *SearchHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.retriever.ClearAllCaches(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ResetCacheMetrics 重置命中统计
func (h *SearchHandler) ResetCacheMetrics(w http.ResponseWriter, r *http.Request) {
	h.retriever.ResetCacheMetrics()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// WarmEmbeddings 批量预生成 Embedding 写入缓存
func (h *SearchHandler) WarmEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req WarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	texts := make([]string, 0, len(req.Texts))
	for _, t := range req.Texts {
		if strings.TrimSpace(t) != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	vectors, err := h.retriever.EmbedTexts(ctx, texts)
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			applog.Error("[RAG] Embedding warm-up failed", "count", len(texts), "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	resp := &WarmResponse{Count: len(vectors)}
	if len(vectors) > 0 {
		resp.Dims = len(vectors[0])
	}
	writeJSON(w, http.StatusOK, resp)
}
