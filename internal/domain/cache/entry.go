package cache

import "time"

// Entry 缓存条目。读时刷新 LastAccessed/AccessCount，写时重置 CreatedAt。
type Entry[T any] struct {
	Data         T             `json:"data"`
	CreatedAt    time.Time     `json:"created_at"`
	TTL          time.Duration `json:"ttl"`
	LastAccessed time.Time     `json:"last_accessed"`
	AccessCount  int           `json:"access_count"`
}

// Expired 判断条目在 now 时刻是否已过期（now - CreatedAt >= TTL）
func (e *Entry[T]) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}
