package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"docqa/internal/api"
	"docqa/internal/db/memstore"
	"docqa/internal/db/postgres"
	redisdb "docqa/internal/db/redis"
	"docqa/internal/domain/rag"
	"docqa/internal/platform/config"
	applog "docqa/internal/platform/log"
	"docqa/internal/platform/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	defer applog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, closeDocs := initDocumentStore(ctx, cfg)
	defer closeDocs()

	ragCfg := &cfg.RAG
	caches := rag.NewCacheManager(ragCfg.CacheConfig())
	caches.Start(ctx)
	defer caches.Stop()

	engine := rag.NewEngine(ragCfg, caches, docs, initEmbeddingProvider(cfg))
	if ragCfg.UsesFallbackEmbeddings() {
		applog.Warn("⚠️  Using fallback hash embeddings, search quality is for testing only")
	}

	if rdb := initRedis(ctx, cfg); rdb != nil && ragCfg.HasEmbeddingStore() {
		defer rdb.Close()
		engine.SetEmbeddingStore(redisdb.NewEmbeddingStore(rdb, ragCfg.EmbeddingStoreTTL, ragCfg.EmbeddingStorePrefix))
		applog.Infof("✅ Embedding store initialized (TTL: %ds)", ragCfg.EmbeddingStoreTTL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCacheCollector(engine),
	)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	server := api.NewServer(serverConfig, engine)
	server.SetMetrics(reg, metrics.NewSearchMetrics(reg))

	go func() {
		<-ctx.Done()

		applog.Info("🔄 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()

		if err := server.Stop(shutdownCtx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

// initDocumentStore 配置了 DATABASE_URL 时使用 PostgreSQL，否则从语料文件加载内存存储
func initDocumentStore(ctx context.Context, cfg *config.AppConfig) (rag.DocumentStore, func()) {
	if cfg.Database.URL == "" {
		store := memstore.New()
		if err := store.LoadFile(cfg.Corpus.File); err != nil {
			applog.Fatalf("❌ Failed to load corpus: %v", err)
		}
		applog.Info("✅ In-memory corpus ready", "file", cfg.Corpus.File)
		return store, func() {}
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		applog.Fatalf("❌ Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeSeconds) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		applog.Fatalf("❌ Failed to ping database: %v", err)
	}
	applog.Info("✅ Connected to PostgreSQL")

	store := postgres.NewDocumentStore(db)
	if err := store.EnsureTables(pingCtx); err != nil {
		applog.Warnf("⚠️  Failed to ensure corpus tables: %v", err)
	} else {
		applog.Info("✅ Corpus tables ready (documents, chunks)")
	}
	return store, func() { _ = db.Close() }
}

func initEmbeddingProvider(cfg *config.AppConfig) rag.EmbeddingProvider {
	ragCfg := &cfg.RAG
	if ragCfg.UsesFallbackEmbeddings() {
		return rag.NewFallbackEmbeddingProvider(ragCfg.EmbeddingDims)
	}

	embedder := rag.NewOpenAIEmbedder(rag.OpenAIEmbedderConfig{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   ragCfg.EmbeddingModel,
		Dims:    ragCfg.EmbeddingDims,
		Timeout: ragCfg.EmbeddingTimeout(),
	})
	applog.Infof("✅ Embedder initialized (model: %s, dims: %d)", ragCfg.EmbeddingModel, embedder.Dims())

	return rag.NewResilientProvider(embedder, rag.ResilienceConfig{
		Name:       "openai-embeddings",
		MaxRetries: uint64(max(ragCfg.EmbeddingMaxRetries, 0)),
	})
}

// initRedis 未配置 REDIS_URL 或连接失败时返回 nil，Embedding 仅使用进程内缓存
func initRedis(ctx context.Context, cfg *config.AppConfig) *goredis.Client {
	if cfg.Redis.URL == "" {
		applog.Info("ℹ️  No REDIS_URL set, embedding store disabled")
		return nil
	}

	opt, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		applog.Warnf("⚠️  Redis URL invalid, embedding store disabled: %v", err)
		return nil
	}

	client := goredis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		applog.Warnf("⚠️  Redis ping failed, embedding store disabled: %v", err)
		_ = client.Close()
		return nil
	}
	applog.Info("✅ Connected to Redis")
	return client
}
