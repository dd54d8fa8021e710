package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseIsAdditive(t *testing.T) {
	vector := []SearchResult{{ChunkID: "a", Score: 0.8}, {ChunkID: "b", Score: 0.75}}
	keyword := []SearchResult{{ChunkID: "a", Score: 1}, {ChunkID: "c", Score: 0.5}}

	merged := fuse(vector, keyword, 0.7, 0.3, 10)
	require.Len(t, merged, 3)

	assert.Equal(t, "a", merged[0].ChunkID)
	assert.InDelta(t, 0.7*0.8+0.3*1, merged[0].Score, 1e-9)
	assert.Equal(t, "b", merged[1].ChunkID)
	assert.InDelta(t, 0.7*0.75, merged[1].Score, 1e-9)
	assert.Equal(t, "c", merged[2].ChunkID)
	assert.InDelta(t, 0.3*0.5, merged[2].Score, 1e-9)
}

func TestFuseBothSourcesBeatEither(t *testing.T) {
	vector := []SearchResult{{ChunkID: "both", Score: 0.7}, {ChunkID: "v", Score: 0.7}}
	keyword := []SearchResult{{ChunkID: "both", Score: 0.5}, {ChunkID: "k", Score: 0.5}}

	merged := fuse(vector, keyword, 0.7, 0.3, 10)
	require.NotEmpty(t, merged)
	assert.Equal(t, "both", merged[0].ChunkID)
}

func TestFuseTieBreakAndLimit(t *testing.T) {
	keyword := []SearchResult{{ChunkID: "c", Score: 1}, {ChunkID: "a", Score: 1}, {ChunkID: "b", Score: 1}}

	merged := fuse(nil, keyword, 0.7, 0.3, 2)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].ChunkID)
	assert.Equal(t, "b", merged[1].ChunkID)
}

func TestFuseDoesNotMutateInputs(t *testing.T) {
	vector := []SearchResult{{ChunkID: "a", Score: 0.9}}
	keyword := []SearchResult{{ChunkID: "a", Score: 1}}

	fuse(vector, keyword, 0.7, 0.3, 10)
	assert.Equal(t, 0.9, vector[0].Score)
	assert.Equal(t, 1.0, keyword[0].Score)
}

func TestQueryCacheKeyNormalizesQuery(t *testing.T) {
	a := queryCacheKey("  Machine   Learning! ", nil, 10)
	b := queryCacheKey("machine learning", nil, 10)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, queryCacheKey("machine learning", nil, 5))
	assert.NotEqual(t, a, queryCacheKey("machine learning", &Filters{Authors: []string{"Ada"}}, 10))
	assert.Equal(t, a, queryCacheKey("machine learning", &Filters{}, 10))
	assert.Equal(t,
		queryCacheKey("q", &Filters{DocumentIDs: []string{"b", "a"}}, 10),
		queryCacheKey("q", &Filters{DocumentIDs: []string{"a", "b"}}, 10),
	)
}
