// Package memstore 进程内文档存储，用于本地开发、离线模式与测试。
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"docqa/internal/domain/rag"
	applog "docqa/internal/platform/log"
)

// Store 内存文档存储，实现 rag.DocumentStore
type Store struct {
	mu        sync.RWMutex
	documents map[string]rag.DocumentMetadata
	chunks    map[string][]rag.EmbeddingRecord // documentID -> chunks
}

// New 创建空存储
func New() *Store {
	return &Store{
		documents: make(map[string]rag.DocumentMetadata),
		chunks:    make(map[string][]rag.EmbeddingRecord),
	}
}

// PutDocument 写入或覆盖文档元数据
func (s *Store) PutDocument(meta rag.DocumentMetadata) {
	s.mu.Lock()
	s.documents[meta.ID] = meta
	s.mu.Unlock()
}

// PutChunks 追加片段，DocumentID 取自各片段自身
func (s *Store) PutChunks(records ...rag.EmbeddingRecord) {
	s.mu.Lock()
	for _, r := range records {
		s.chunks[r.DocumentID] = append(s.chunks[r.DocumentID], r)
	}
	s.mu.Unlock()
}

// GetMetadata 读取文档元数据
func (s *Store) GetMetadata(_ context.Context, documentID string) (*rag.DocumentMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rag.ErrDocumentNotFound, documentID)
	}
	return &meta, nil
}

// ListChunks 返回指定文档（为空时为全部文档）的片段，按 ChunkID 排序
func (s *Store) ListChunks(ctx context.Context, documentIDs []string) ([]rag.EmbeddingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []rag.EmbeddingRecord
	if len(documentIDs) == 0 {
		for _, recs := range s.chunks {
			out = append(out, recs...)
		}
	} else {
		seen := make(map[string]struct{}, len(documentIDs))
		for _, id := range documentIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, s.chunks[id]...)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out, nil
}

// corpusFile JSON 语料文件格式
type corpusFile struct {
	Documents []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Author string `json:"author"`
		Date   string `json:"date"` // RFC3339 或 2006-01-02
	} `json:"documents"`
	Chunks []rag.EmbeddingRecord `json:"chunks"`
}

// LoadFile 从 JSON 语料文件加载文档与片段
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read corpus file: %w", err)
	}

	var f corpusFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse corpus file: %w", err)
	}

	for _, d := range f.Documents {
		meta := rag.DocumentMetadata{ID: d.ID, Title: d.Title, Author: d.Author}
		if d.Date != "" {
			date, err := parseDate(d.Date)
			if err != nil {
				return fmt.Errorf("document %s: %w", d.ID, err)
			}
			meta.Date = date
		}
		s.PutDocument(meta)
	}
	s.PutChunks(f.Chunks...)

	applog.Info("[Storage] Corpus loaded", "path", path, "documents", len(f.Documents), "chunks", len(f.Chunks))
	return nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", v)
	}
	return t, nil
}
