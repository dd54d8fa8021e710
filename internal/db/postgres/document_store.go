package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"docqa/internal/domain/rag"
	applog "docqa/internal/platform/log"
)

// DocumentStore PostgreSQL 文档与片段存储，实现 rag.DocumentStore
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore 创建文档存储
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// EnsureTables 确保 documents / chunks 表存在
func (s *DocumentStore) EnsureTables(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS documents (
		id           VARCHAR(255) PRIMARY KEY,
		title        TEXT,
		author       TEXT,
		published_at TIMESTAMP WITH TIME ZONE,
		created_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id          VARCHAR(255) PRIMARY KEY,
		document_id VARCHAR(255) NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		content     TEXT NOT NULL,
		page        INT NOT NULL DEFAULT 1,
		embedding   DOUBLE PRECISION[] NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// GetMetadata 读取文档元数据，不存在时返回 rag.ErrDocumentNotFound
func (s *DocumentStore) GetMetadata(ctx context.Context, documentID string) (*rag.DocumentMetadata, error) {
	var (
		title, author sql.NullString
		publishedAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT title, author, published_at FROM documents WHERE id = $1`, documentID,
	).Scan(&title, &author, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", rag.ErrDocumentNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document metadata: %w", err)
	}

	meta := &rag.DocumentMetadata{
		ID:     documentID,
		Title:  title.String,
		Author: author.String,
	}
	if publishedAt.Valid {
		meta.Date = publishedAt.Time
	}
	return meta, nil
}

// ListChunks 读取片段，documentIDs 为空时读取全部语料。无法解析的行被跳过。
func (s *DocumentStore) ListChunks(ctx context.Context, documentIDs []string) ([]rag.EmbeddingRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(documentIDs) == 0 {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, document_id, content, page, embedding FROM chunks ORDER BY id`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, document_id, content, page, embedding FROM chunks WHERE document_id = ANY($1) ORDER BY id`,
			pq.Array(documentIDs))
	}
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var (
		records []rag.EmbeddingRecord
		skipped int
	)
	for rows.Next() {
		var (
			rec       rag.EmbeddingRecord
			page      sql.NullInt64
			embedding pq.Float64Array
		)
		if err := rows.Scan(&rec.ChunkID, &rec.DocumentID, &rec.Text, &page, &embedding); err != nil {
			skipped++
			continue
		}
		rec.Page = int(page.Int64)
		rec.Vector = make([]float32, len(embedding))
		for i, x := range embedding {
			rec.Vector[i] = float32(x)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	if skipped > 0 {
		applog.Warn("[Storage] Skipped unreadable chunk rows", "count", skipped)
	}
	return records, nil
}
