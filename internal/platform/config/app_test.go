package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain/rag"
)

func TestLoadDefaultsWithEnv(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RAG_CORPUS_FILE", "corpus.json")
	t.Setenv("PORT", "9090")
	t.Setenv("RAG_VECTOR_WEIGHT", "0.6")
	t.Setenv("RAG_QUERY_CACHE_SIZE", "50")
	t.Setenv("RAG_DEFAULT_LIMIT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.RAG.VectorWeight)
	assert.Equal(t, 0.3, cfg.RAG.KeywordWeight)
	assert.Equal(t, 50, cfg.RAG.QueryCacheSize)
	assert.Equal(t, 10, cfg.RAG.DefaultLimit)
	assert.Equal(t, rag.ProviderOpenAI, cfg.RAG.EmbeddingProvider)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	content := `{"log_level":"debug","rag":{"similarity_threshold":0.5,"embedding_provider":"Fallback"},"corpus":{"file":"from-file.json"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("APP_CONFIG_FILE", path)
	t.Setenv("RAG_CORPUS_FILE", "from-env.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.5, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, rag.ProviderFallback, cfg.RAG.EmbeddingProvider)
	assert.Equal(t, "from-env.json", cfg.Corpus.File)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing api key", map[string]string{"RAG_CORPUS_FILE": "c.json"}},
		{"unknown provider", map[string]string{"RAG_CORPUS_FILE": "c.json", "RAG_EMBEDDING_PROVIDER": "cohere"}},
		{"no corpus", map[string]string{"RAG_EMBEDDING_PROVIDER": "fallback"}},
		{"threshold out of range", map[string]string{"RAG_CORPUS_FILE": "c.json", "RAG_EMBEDDING_PROVIDER": "fallback", "RAG_SIMILARITY_THRESHOLD": "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"APP_CONFIG_FILE", "OPENAI_API_KEY", "DATABASE_URL", "RAG_CORPUS_FILE", "RAG_EMBEDDING_PROVIDER", "RAG_SIMILARITY_THRESHOLD"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.json"))

	_, err := Load()
	assert.Error(t, err)
}
