package rag

import (
	"sort"
	"time"
)

// EmbeddingRecord 已分块、已向量化的文档片段。入库阶段生成，检索引擎只读。
type EmbeddingRecord struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	Page       int       `json:"page,omitempty"`
	Vector     []float32 `json:"vector"`
}

// DocumentMetadata 文档元数据（来自文档存储）
type DocumentMetadata struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	Author string    `json:"author"`
	Date   time.Time `json:"date"`
}

// ResultMetadata 检索结果附带的元数据
type ResultMetadata struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Page   int    `json:"page"`
}

// SearchResult 单条检索结果，按查询构造，不持久化
type SearchResult struct {
	ChunkID    string         `json:"chunk_id"`
	DocumentID string         `json:"document_id"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Metadata   ResultMetadata `json:"metadata"`
}

// 元数据查找失败时的占位值
const (
	UnknownTitle  = "Unknown Title"
	UnknownAuthor = "Unknown Author"
)

// Filters 检索前的语料过滤条件，全部为空表示不过滤
type Filters struct {
	DocumentIDs []string   `json:"document_ids,omitempty"`
	Authors     []string   `json:"authors,omitempty"`
	DateFrom    *time.Time `json:"date_from,omitempty"`
	DateTo      *time.Time `json:"date_to,omitempty"`
}

// SimilarOptions 向量检索参数
type SimilarOptions struct {
	Filters   *Filters
	Threshold *float64 // nil 使用 Config.SimilarityThreshold
	Limit     int      // <=0 使用 Config.DefaultLimit
}

// needsMetadata 是否需要通过元数据（作者、日期）过滤
func (f *Filters) needsMetadata() bool {
	return f != nil && (len(f.Authors) > 0 || f.DateFrom != nil || f.DateTo != nil)
}

func (f *Filters) documentIDs() []string {
	if f == nil {
		return nil
	}
	return f.DocumentIDs
}

// match 判断文档元数据是否满足作者/日期条件
func (f *Filters) match(meta *DocumentMetadata) bool {
	if len(f.Authors) > 0 {
		found := false
		for _, a := range f.Authors {
			if a == meta.Author {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DateFrom != nil && meta.Date.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && meta.Date.After(*f.DateTo) {
		return false
	}
	return true
}

// canonical 返回排序后的副本，用于生成稳定的缓存 key
func (f *Filters) canonical() *Filters {
	if f == nil {
		return nil
	}
	c := &Filters{DateFrom: f.DateFrom, DateTo: f.DateTo}
	if len(f.DocumentIDs) > 0 {
		c.DocumentIDs = append([]string(nil), f.DocumentIDs...)
		sort.Strings(c.DocumentIDs)
	}
	if len(f.Authors) > 0 {
		c.Authors = append([]string(nil), f.Authors...)
		sort.Strings(c.Authors)
	}
	if c.DocumentIDs == nil && c.Authors == nil && c.DateFrom == nil && c.DateTo == nil {
		return nil
	}
	return c
}

// sortResults 按分数降序排序，分数相同按 ChunkID 升序，保证结果确定
func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}

func truncate(results []SearchResult, limit int) []SearchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}

func cloneResults(results []SearchResult) []SearchResult {
	if results == nil {
		return nil
	}
	return append([]SearchResult(nil), results...)
}

func resultFromRecord(rec *EmbeddingRecord, score float64) SearchResult {
	page := rec.Page
	if page <= 0 {
		page = 1
	}
	return SearchResult{
		ChunkID:    rec.ChunkID,
		DocumentID: rec.DocumentID,
		Text:       rec.Text,
		Score:      score,
		Metadata:   ResultMetadata{Page: page},
	}
}
