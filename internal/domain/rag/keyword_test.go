package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"Machine Learning", []string{"machine", "learning"}},
		{"AI is ok but neural nets", []string{"but", "neural", "nets"}},
		{"learning LEARNING learning", []string{"learning"}},
		{"a an to", []string{}},
		{"机器学习 深度", []string{"机器学习"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.query))
		})
	}
}

func TestKeywordScores(t *testing.T) {
	corpus := []EmbeddingRecord{
		{ChunkID: "a", Text: "Machine learning basics"},
		{ChunkID: "b", Text: "Deep learning and neural networks"},
		{ChunkID: "c", Text: "Cooking recipes"},
	}

	results := keywordScores("machine learning", corpus)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
	assert.Equal(t, 1, results[0].Metadata.Page)
}

func TestKeywordScoresSubstringMatch(t *testing.T) {
	corpus := []EmbeddingRecord{{ChunkID: "a", Text: "unlearning habits"}}

	results := keywordScores("learning", corpus)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestKeywordScoresNoTokens(t *testing.T) {
	corpus := []EmbeddingRecord{{ChunkID: "a", Text: "an ox"}}
	assert.Empty(t, keywordScores("an ox", corpus))
}
