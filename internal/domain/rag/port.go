package rag

import "context"

// DocumentStore 语料与文档元数据存储
type DocumentStore interface {
	// GetMetadata 文档不存在时返回 ErrDocumentNotFound
	GetMetadata(ctx context.Context, documentID string) (*DocumentMetadata, error)
	// ListChunks 返回指定文档的全部片段，documentIDs 为空时返回整个语料
	ListChunks(ctx context.Context, documentIDs []string) ([]EmbeddingRecord, error)
}

// EmbeddingStore 可选的跨进程二级 Embedding 缓存。
// 实现自行吸收错误，失败一律视为未命中。
type EmbeddingStore interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
}

// EmbeddingInvalidator 支持整体失效的二级缓存，返回删除数量
type EmbeddingInvalidator interface {
	InvalidateAll(ctx context.Context) int
}
