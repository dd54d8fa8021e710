package memstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain/rag"
)

func TestStoreListChunks(t *testing.T) {
	s := New()
	s.PutChunks(
		rag.EmbeddingRecord{ChunkID: "b1", DocumentID: "b", Text: "two"},
		rag.EmbeddingRecord{ChunkID: "a1", DocumentID: "a", Text: "one"},
		rag.EmbeddingRecord{ChunkID: "c1", DocumentID: "c", Text: "three"},
	)

	all, err := s.ListChunks(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a1", all[0].ChunkID)

	some, err := s.ListChunks(context.Background(), []string{"c", "a", "c"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, []string{"a1", "c1"}, []string{some[0].ChunkID, some[1].ChunkID})
}

func TestStoreGetMetadata(t *testing.T) {
	s := New()
	s.PutDocument(rag.DocumentMetadata{ID: "a", Title: "T", Author: "X"})

	meta, err := s.GetMetadata(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "T", meta.Title)

	_, err = s.GetMetadata(context.Background(), "missing")
	assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
}

func TestStoreLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	content := `{
  "documents": [
    {"id": "d1", "title": "ML", "author": "Ada", "date": "2024-03-01"},
    {"id": "d2", "title": "DL", "author": "Alan", "date": "2024-05-01T10:00:00Z"}
  ],
  "chunks": [
    {"chunk_id": "d1-0", "document_id": "d1", "text": "machine learning", "page": 2, "vector": [1, 0]},
    {"chunk_id": "d2-0", "document_id": "d2", "text": "deep learning", "vector": [0, 1]}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s := New()
	require.NoError(t, s.LoadFile(path))

	meta, err := s.GetMetadata(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), meta.Date)

	chunks, err := s.ListChunks(context.Background(), []string{"d1"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].Page)
	assert.Equal(t, []float32{1, 0}, chunks[0].Vector)
}

func TestStoreLoadFileInvalidDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"documents":[{"id":"x","date":"yesterday"}]}`), 0o600))

	err := New().LoadFile(path)
	assert.Error(t, err)
}
