package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorScoresThresholdAndOrder(t *testing.T) {
	corpus := []EmbeddingRecord{
		{ChunkID: "low", Vector: []float32{0, 1}},
		{ChunkID: "exact", Vector: []float32{1, 0}},
		{ChunkID: "near", Vector: []float32{1, 0.2}},
	}

	results, err := vectorScores(context.Background(), []float32{1, 0}, corpus, 0.7, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].ChunkID)
	assert.Equal(t, "near", results[1].ChunkID)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.7)
	}
}

func TestVectorScoresSkipsMismatchedDimensions(t *testing.T) {
	corpus := []EmbeddingRecord{
		{ChunkID: "bad", Vector: []float32{1, 0, 0}},
		{ChunkID: "good", Vector: []float32{1, 0}},
	}

	results, err := vectorScores(context.Background(), []float32{1, 0}, corpus, 0.5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "good", results[0].ChunkID)
}

func TestVectorScoresShardedMatchesSinglePass(t *testing.T) {
	corpus := make([]EmbeddingRecord, 0, 100)
	for i := 0; i < 100; i++ {
		corpus = append(corpus, EmbeddingRecord{
			ChunkID: fmt.Sprintf("c%03d", i),
			Vector:  []float32{float32(i % 7), float32(i % 5), 1},
		})
	}
	query := []float32{1, 1, 1}

	single, err := vectorScores(context.Background(), query, corpus, 0.5, 0)
	require.NoError(t, err)
	sharded, err := vectorScores(context.Background(), query, corpus, 0.5, 8)
	require.NoError(t, err)

	assert.Equal(t, single, sharded)
}

func TestVectorScoresShardedCanceled(t *testing.T) {
	corpus := make([]EmbeddingRecord, 10)
	for i := range corpus {
		corpus[i] = EmbeddingRecord{ChunkID: fmt.Sprint(i), Vector: []float32{1}}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := vectorScores(ctx, []float32{1}, corpus, 0, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
