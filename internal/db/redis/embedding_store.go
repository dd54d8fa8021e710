package redisdb

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/domain/rag"
	applog "docqa/internal/platform/log"
)

var (
	_ rag.EmbeddingStore       = (*EmbeddingStore)(nil)
	_ rag.EmbeddingInvalidator = (*EmbeddingStore)(nil)
)

// EmbeddingStore Embedding 二级 Redis 缓存，多实例共享。
// 所有 Redis 错误只记日志并按未命中处理，不影响检索。
type EmbeddingStore struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewEmbeddingStore 创建 Embedding 缓存
func NewEmbeddingStore(rdb *redis.Client, ttlSeconds int, prefix string) *EmbeddingStore {
	ttl := 7 * 24 * time.Hour
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	if prefix == "" {
		prefix = "rag:emb:"
	}
	return &EmbeddingStore{
		redis:  rdb,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Get 读取向量
func (s *EmbeddingStore) Get(ctx context.Context, key string) ([]float32, bool) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			applog.Warn("[RAG/EmbeddingStore] Get failed", "error", err)
		}
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		applog.Warn("[RAG/EmbeddingStore] Failed to unmarshal cached vector", "error", err)
		return nil, false
	}

	applog.Debug("[RAG/EmbeddingStore] Hit", "key", key)
	return vector, true
}

// Set 写入向量
func (s *EmbeddingStore) Set(ctx context.Context, key string, vector []float32) {
	data, err := json.Marshal(vector)
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, s.redisKey(key), data, s.ttl).Err(); err != nil {
		applog.Warn("[RAG/EmbeddingStore] Failed to set cache", "error", err)
	}
}

// InvalidateAll 清除全部 Embedding 缓存，返回删除数量
func (s *EmbeddingStore) InvalidateAll(ctx context.Context) int {
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		applog.Warn("[RAG/EmbeddingStore] Scan failed", "error", err)
	}
	if len(keys) == 0 {
		return 0
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		applog.Warn("[RAG/EmbeddingStore] Delete failed", "error", err)
		return 0
	}
	applog.Info("[RAG/EmbeddingStore] All cache invalidated", "keys_deleted", len(keys))
	return len(keys)
}

// redisKey 规范化文本可能很长，统一哈希为定长 key
func (s *EmbeddingStore) redisKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return s.prefix + fmt.Sprintf("%x", hash[:12])
}
