package legalrag

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/legal-rag/internal/legalrag/biz"
	"github.com/kart-io/legal-rag/internal/legalrag/handler"
	"github.com/kart-io/legal-rag/internal/legalrag/metrics"
	"github.com/kart-io/legal-rag/internal/legalrag/router"
	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/pkg/component/milvus"
	"github.com/kart-io/legal-rag/pkg/component/postgres"
	"github.com/kart-io/legal-rag/pkg/component/redis"
	"github.com/kart-io/legal-rag/pkg/component/storage"
	"github.com/kart-io/legal-rag/pkg/infra/app"
	"github.com/kart-io/legal-rag/pkg/infra/tracing"
	"github.com/kart-io/legal-rag/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/legal-rag/pkg/llm/gemini"
	_ "github.com/kart-io/legal-rag/pkg/llm/local"
	_ "github.com/kart-io/legal-rag/pkg/llm/ollama"
	"github.com/kart-io/legal-rag/pkg/llm/resilience"
	"github.com/kart-io/legal-rag/pkg/middleware"
	cacheopts "github.com/kart-io/legal-rag/pkg/options/cache"
	indexopts "github.com/kart-io/legal-rag/pkg/options/index"
)

// Server represents the legal RAG server.
type Server struct {
	httpServer *http.Server
	storage    *storage.Manager
	tracer     *tracing.Provider
	watcher    *store.CorpusWatcher
	cfg        *Config
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting legal RAG service...")

	// 2. 初始化链路追踪
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// 3. 指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// 4. 初始化缓存
	mgr := storage.NewManager()
	cache, rdb, err := cfg.newCache(ctx, mgr)
	if err != nil {
		_ = mgr.CloseAll()
		return nil, err
	}

	// 5. 初始化 LLM 供应商与索引
	embedder, chat, err := cfg.newProviders(m, rdb)
	if err != nil {
		_ = mgr.CloseAll()
		return nil, err
	}
	index, err := cfg.newIndex(ctx, mgr, embedder)
	if err != nil {
		_ = mgr.CloseAll()
		return nil, err
	}
	var watcher *store.CorpusWatcher
	if mem, ok := index.(*store.MemoryIndex); ok && cfg.IndexOptions.WatchCorpus {
		if watcher, err = store.NewCorpusWatcher(cfg.IndexOptions.CorpusFile, mem, embedder); err != nil {
			_ = mgr.CloseAll()
			return nil, err
		}
	}
	index = store.NewResilientIndex(index, "index:"+cfg.IndexOptions.Backend, cfg.resilienceOptions(m))

	// 6. 初始化 Biz 层
	serviceConfig, err := ServiceConfig(cfg.RAGOptions)
	if err != nil {
		_ = mgr.CloseAll()
		return nil, err
	}
	svc := biz.NewLegalRAGService(index, embedder, chat, cache, biz.MultiSink{biz.LogSink{}, m}, serviceConfig)
	logger.Infow("Legal RAG service initialized",
		"index.backend", cfg.IndexOptions.Backend,
		"cache.enabled", cfg.CacheOptions.Enabled,
		"cache.backend", cfg.CacheOptions.Backend,
		"retrieval.vector_weight", cfg.RAGOptions.Retrieval.VectorWeight,
		"retrieval.keyword_weight", cfg.RAGOptions.Retrieval.KeywordWeight,
	)

	// 7. 初始化 HTTP 层
	engine := NewEngine(cfg, handler.New(svc, m, mgr), m, registry)

	logger.Info("Legal RAG service is ready")
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPOptions.Addr,
			Handler:      engine,
			ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
			WriteTimeout: cfg.HTTPOptions.WriteTimeout,
			IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
		},
		storage: mgr,
		tracer:  tp,
		watcher: watcher,
		cfg:     cfg,
	}, nil
}

// NewEngine builds the gin engine with the middleware chain and routes.
func NewEngine(cfg *Config, h *handler.Handler, observer middleware.HTTPObserver, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Tracing(),
		middleware.Logger(),
		middleware.Metrics(observer),
		middleware.Timeout(cfg.HTTPOptions.RequestTimeout, router.APIPrefix+"/batch"),
	)
	router.Register(engine, h, gatherer)
	return engine
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if err := s.storage.CloseAll(); err != nil {
			logger.Warnw("failed to close storage clients", "error", err.Error())
		}
	}()

	if s.watcher != nil {
		logger.Infow("Watching corpus file", "path", s.cfg.IndexOptions.CorpusFile)
		go s.watcher.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down legal RAG service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPOptions.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := s.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("failed to flush traces", "error", err.Error())
	}
	logger.Info("Legal RAG service stopped")
	return nil
}

func (cfg *Config) newProviders(observer resilience.Observer, rdb *goredis.Client) (llm.EmbeddingProvider, llm.ChatProvider, error) {
	embedOpts := cfg.LLMOptions.Embedding
	embedder, err := llm.NewEmbeddingProvider(embedOpts.Provider, embedOpts.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized", "provider", embedOpts.Provider, "model", embedOpts.Model)

	chatOpts := cfg.LLMOptions.Chat
	chat, err := llm.NewChatProvider(chatOpts.Provider, chatOpts.ToConfigMap())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized", "provider", chatOpts.Provider, "model", chatOpts.Model)

	ropts := cfg.resilienceOptions(observer)
	var resilientEmbedder llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(embedder, ropts)
	if cacheOpts := cfg.CacheOptions; cacheOpts.Enabled && cacheOpts.EmbeddingTTL > 0 {
		ecfg := llm.DefaultEmbeddingCacheConfig()
		ecfg.TTL = cacheOpts.EmbeddingTTL
		resilientEmbedder = llm.NewCachedEmbeddingProvider(resilientEmbedder, rdb, ecfg)
		logger.Infow("Embedding cache enabled", "ttl", ecfg.TTL, "redis", rdb != nil)
	}
	return resilientEmbedder, resilience.NewResilientChatProvider(chat, ropts), nil
}

// resilienceOptions 返回供应商与索引共用的重试与熔断配置。
func (cfg *Config) resilienceOptions(observer resilience.Observer) *resilience.Options {
	return &resilience.Options{
		Retry:          cfg.LLMOptions.Resilience.RetryConfig(),
		CircuitBreaker: cfg.LLMOptions.Resilience.CircuitBreakerConfig(),
		Observer:       observer,
	}
}

func (cfg *Config) newIndex(ctx context.Context, mgr *storage.Manager, embedder llm.EmbeddingProvider) (store.Index, error) {
	opts := cfg.IndexOptions
	switch opts.Backend {
	case indexopts.BackendPostgres:
		client, err := postgres.New(ctx, opts.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres: %w", err)
		}
		if err := mgr.Register(client.Name(), client); err != nil {
			_ = client.Close()
			return nil, err
		}
		dim, err := cfg.embeddingDimension(ctx, embedder)
		if err != nil {
			return nil, err
		}
		idx := store.NewPGIndex(client.Pool(), opts.Table)
		if err := idx.EnsureSchema(ctx, dim); err != nil {
			return nil, err
		}
		logger.Infow("Postgres index initialized", "table", opts.Table, "dimension", dim)
		return idx, nil

	case indexopts.BackendMilvus:
		client, err := milvus.New(ctx, opts.Milvus)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		if err := mgr.Register(client.Name(), client); err != nil {
			_ = client.Close()
			return nil, err
		}
		dim, err := cfg.embeddingDimension(ctx, embedder)
		if err != nil {
			return nil, err
		}
		idx := store.NewMilvusIndex(client)
		if err := idx.EnsureCollection(ctx, dim); err != nil {
			return nil, err
		}
		logger.Infow("Milvus index initialized", "collection", client.Collection(), "dimension", dim)
		return idx, nil

	default:
		idx := store.NewMemoryIndex()
		if opts.CorpusFile != "" {
			chunks, err := store.LoadCorpus(ctx, opts.CorpusFile, embedder)
			if err != nil {
				return nil, err
			}
			idx.Add(chunks...)
		}
		logger.Infow("Memory index initialized", "chunks", idx.Len(), "documents", len(idx.Documents()))
		return idx, nil
	}
}

// embeddingDimension 优先使用配置的维度，否则用一次嵌入调用探测。
func (cfg *Config) embeddingDimension(ctx context.Context, embedder llm.EmbeddingProvider) (int, error) {
	if dim := cfg.LLMOptions.Embedding.Dimension; dim > 0 && cfg.LLMOptions.Embedding.Provider == "local" {
		return dim, nil
	}
	vec, err := embedder.EmbedSingle(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("failed to probe embedding dimension: %w", err)
	}
	return len(vec), nil
}

// newCache 返回结果缓存；使用 redis 时同时返回客户端供嵌入缓存复用。
func (cfg *Config) newCache(ctx context.Context, mgr *storage.Manager) (biz.ResultCache, *goredis.Client, error) {
	opts := cfg.CacheOptions
	if !opts.Enabled {
		logger.Info("Result cache is disabled")
		return biz.NopResultCache{}, nil, nil
	}

	if opts.Backend == cacheopts.BackendRedis {
		client, err := redis.New(ctx, opts.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, falling back to memory cache", "error", err.Error())
			return biz.NewMemoryResultCache(opts.TTL), nil, nil
		}
		if err := mgr.Register(client.Name(), client); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		logger.Infow("Redis result cache initialized", "addr", opts.Redis.Addr(), "ttl", opts.TTL)
		return biz.NewRedisResultCache(client.Client(), opts.TTL, opts.KeyPrefix), client.Client(), nil
	}

	logger.Infow("Memory result cache initialized", "ttl", opts.TTL)
	return biz.NewMemoryResultCache(opts.TTL), nil, nil
}
