package rag

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", []float32{}, []float32{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilaritySymmetricAndBounded(t *testing.T) {
	pairs := [][2][]float32{
		{{0.3, -0.7, 0.1}, {0.9, 0.2, -0.4}},
		{{1e-3, 5, 2}, {3, 3, 3}},
		{{-1, -1, -1}, {0.5, 0.25, 0.125}},
	}
	for _, p := range pairs {
		ab, err := CosineSimilarity(p[0], p[1])
		require.NoError(t, err)
		ba, err := CosineSimilarity(p[1], p[0])
		require.NoError(t, err)

		assert.Equal(t, ab, ba)
		assert.LessOrEqual(t, math.Abs(ab), 1.0)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
