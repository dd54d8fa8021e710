package rag

import (
	"context"

	"golang.org/x/sync/errgroup"

	applog "docqa/internal/platform/log"
)

// vectorScores 对语料逐条计算与查询向量的余弦相似度，保留 >= threshold 的片段并排序。
// 维度不一致的记录被跳过，不影响整体检索。语料超过 shardSize 时分片并行。
func vectorScores(ctx context.Context, query []float32, corpus []EmbeddingRecord, threshold float64, shardSize int) ([]SearchResult, error) {
	if len(corpus) == 0 {
		return nil, nil
	}
	if shardSize <= 0 || len(corpus) <= shardSize {
		results, skipped := scoreShard(query, corpus, threshold)
		logSkipped(skipped)
		sortResults(results)
		return results, nil
	}

	shards := (len(corpus) + shardSize - 1) / shardSize
	partial := make([][]SearchResult, shards)
	skipped := make([]int, shards)

	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		s := s
		start := s * shardSize
		end := min(start+shardSize, len(corpus))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			partial[s], skipped[s] = scoreShard(query, corpus[start:end], threshold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []SearchResult
	totalSkipped := 0
	for s := range partial {
		results = append(results, partial[s]...)
		totalSkipped += skipped[s]
	}
	logSkipped(totalSkipped)
	sortResults(results)

	applog.Debug("[RAG/Vector] Sharded scan", "records", len(corpus), "shards", shards, "hits", len(results))
	return results, nil
}

func scoreShard(query []float32, records []EmbeddingRecord, threshold float64) ([]SearchResult, int) {
	var results []SearchResult
	skipped := 0
	for i := range records {
		score, err := CosineSimilarity(query, records[i].Vector)
		if err != nil {
			skipped++
			continue
		}
		if score >= threshold {
			results = append(results, resultFromRecord(&records[i], score))
		}
	}
	return results, skipped
}

func logSkipped(n int) {
	if n > 0 {
		applog.Warn("[RAG/Vector] Skipped records with mismatched dimensions", "count", n)
	}
}
