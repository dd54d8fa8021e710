package rag

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// FallbackEmbeddingProvider 基于词哈希的确定性向量，仅用于测试与离线模式，不能替代真实模型。
// 每个词按 xxhash 落到一个维度上累加，再做 L2 归一化；共享词越多的文本相似度越高。
type FallbackEmbeddingProvider struct {
	dims int
}

// NewFallbackEmbeddingProvider 创建离线 Embedding
func NewFallbackEmbeddingProvider(dims int) *FallbackEmbeddingProvider {
	if dims <= 0 {
		dims = 1536
	}
	return &FallbackEmbeddingProvider{dims: dims}
}

// Dims 返回向量维度
func (p *FallbackEmbeddingProvider) Dims() int {
	return p.dims
}

// Embed 为每段文本生成哈希向量，不访问任何外部服务
func (p *FallbackEmbeddingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vector(text)
	}
	return vectors, nil
}

func (p *FallbackEmbeddingProvider) vector(text string) []float32 {
	v := make([]float32, p.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		v[xxhash.Sum64String(w)%uint64(p.dims)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
