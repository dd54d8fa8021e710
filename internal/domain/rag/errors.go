package rag

import (
	"errors"

	"docqa/internal/domain/batch"
)

var (
	// ErrDimensionMismatch 向量维度不一致（编程错误，不重试）
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrProviderUnavailable Embedding 服务暂不可用（可降级或由调用方重试）
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrOperationTimeout 调用超过截止时间
	ErrOperationTimeout = batch.ErrOperationTimeout

	// ErrEnrichmentFailure 元数据补全失败，结果以占位元数据返回
	ErrEnrichmentFailure = errors.New("metadata enrichment failed")

	// ErrCorpusUnavailable 语料整体无法读取，唯一会向调用方传播的检索错误
	ErrCorpusUnavailable = errors.New("corpus unavailable")

	// ErrDocumentNotFound 文档不存在
	ErrDocumentNotFound = errors.New("document not found")

	// ErrEmptyQuery 查询为空
	ErrEmptyQuery = errors.New("query is empty")
)
