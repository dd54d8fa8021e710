package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"docqa/internal/domain/rag"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string         `json:"log_level"`
	LogFormat string         `json:"log_format"`
	Server    ServerConfig   `json:"server"`
	Database  DatabaseConfig `json:"database"`
	Redis     RedisConfig    `json:"redis"`
	OpenAI    OpenAIConfig   `json:"openai"`
	Corpus    CorpusConfig   `json:"corpus"`
	RAG       rag.Config     `json:"rag"`
}

type ServerConfig struct {
	Host                   string `json:"host"`
	Port                   int    `json:"port"`
	ReadTimeoutSeconds     int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `json:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds"`
}

// DatabaseConfig 为空 URL 时使用内存语料
type DatabaseConfig struct {
	URL                    string `json:"url"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
}

// RedisConfig 为空 URL 时不启用二级 Embedding 缓存
type RedisConfig struct {
	URL string `json:"url"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// CorpusConfig 内存语料文件（JSON），仅在未配置数据库时使用
type CorpusConfig struct {
	File string `json:"file"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	ragCfg := rag.DefaultConfig()
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   8080,
			ReadTimeoutSeconds:     30,
			WriteTimeoutSeconds:    60,
			ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeSeconds: 300,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		RAG: *ragCfg,
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	// .env 非必需，忽略错误
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyInt("SERVER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeoutSeconds)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	applyInt("DATABASE_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetimeSeconds)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	applyString("OPENAI_BASE_URL", &c.OpenAI.BaseURL)

	applyString("RAG_CORPUS_FILE", &c.Corpus.File)

	// RAG 环境变量
	applyFloat64("RAG_VECTOR_WEIGHT", &c.RAG.VectorWeight)
	applyFloat64("RAG_KEYWORD_WEIGHT", &c.RAG.KeywordWeight)
	applyFloat64("RAG_SIMILARITY_THRESHOLD", &c.RAG.SimilarityThreshold)
	applyInt("RAG_DEFAULT_LIMIT", &c.RAG.DefaultLimit)
	applyInt("RAG_SHARD_SIZE", &c.RAG.ShardSize)
	applyString("RAG_EMBEDDING_PROVIDER", &c.RAG.EmbeddingProvider)
	applyString("RAG_EMBEDDING_MODEL", &c.RAG.EmbeddingModel)
	applyInt("RAG_EMBEDDING_DIMS", &c.RAG.EmbeddingDims)
	applyInt("RAG_EMBEDDING_TIMEOUT_MS", &c.RAG.EmbeddingTimeoutMs)
	applyInt("RAG_EMBEDDING_BATCH_SIZE", &c.RAG.EmbeddingBatchSize)
	applyInt("RAG_EMBEDDING_BATCH_DELAY_MS", &c.RAG.EmbeddingBatchDelayMs)
	applyInt("RAG_EMBEDDING_MAX_RETRIES", &c.RAG.EmbeddingMaxRetries)
	applyInt("RAG_QUERY_CACHE_TTL", &c.RAG.QueryCacheTTL)
	applyInt("RAG_QUERY_CACHE_SIZE", &c.RAG.QueryCacheSize)
	applyInt("RAG_EMBEDDING_CACHE_TTL", &c.RAG.EmbeddingCacheTTL)
	applyInt("RAG_EMBEDDING_CACHE_SIZE", &c.RAG.EmbeddingCacheSize)
	applyInt("RAG_RESPONSE_CACHE_TTL", &c.RAG.ResponseCacheTTL)
	applyInt("RAG_RESPONSE_CACHE_SIZE", &c.RAG.ResponseCacheSize)
	applyInt("RAG_CACHE_SWEEP_INTERVAL", &c.RAG.CacheSweepInterval)
	applyInt("RAG_EMBEDDING_STORE_TTL", &c.RAG.EmbeddingStoreTTL)
	applyString("RAG_EMBEDDING_STORE_PREFIX", &c.RAG.EmbeddingStorePrefix)
}

func (c *AppConfig) normalize() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	c.RAG.EmbeddingProvider = strings.ToLower(strings.TrimSpace(c.RAG.EmbeddingProvider))
	if c.RAG.EmbeddingProvider == "" {
		c.RAG.EmbeddingProvider = rag.ProviderOpenAI
	}
}

func (c *AppConfig) validate() error {
	switch c.RAG.EmbeddingProvider {
	case rag.ProviderOpenAI:
		if strings.TrimSpace(c.OpenAI.APIKey) == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when RAG_EMBEDDING_PROVIDER=%s", rag.ProviderOpenAI)
		}
	case rag.ProviderFallback:
	default:
		return fmt.Errorf("unknown RAG_EMBEDDING_PROVIDER %q", c.RAG.EmbeddingProvider)
	}
	if c.RAG.VectorWeight < 0 || c.RAG.KeywordWeight < 0 {
		return fmt.Errorf("RAG weights must be non-negative")
	}
	if c.RAG.SimilarityThreshold < -1 || c.RAG.SimilarityThreshold > 1 {
		return fmt.Errorf("RAG_SIMILARITY_THRESHOLD must be within [-1, 1]")
	}
	if strings.TrimSpace(c.Database.URL) == "" && strings.TrimSpace(c.Corpus.File) == "" {
		return fmt.Errorf("either DATABASE_URL or RAG_CORPUS_FILE is required")
	}
	return nil
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyFloat64(key string, target *float64) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			*target = n
		}
	}
}
