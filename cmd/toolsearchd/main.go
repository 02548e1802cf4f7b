package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/actions"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/circuitbreaker"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/config"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/embeddings"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/health"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/httpapi"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/persistence"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/ratecontrol"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/toolsearch"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/tracing"
	"github.com/DonutLabs-ai/donut-toolkit-sub001/internal/vectordb"
)

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Logging.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.Logging.Level); err == nil {
		zc.Level = lvl
	}
	return zc.Build()
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed; continuing without traces", zap.Error(err))
	}

	// Metrics endpoint on its own listener.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + strconv.Itoa(cfg.Server.MetricsPort)
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	limits, err := ratecontrol.Load(cfg.Search.RateLimitFile)
	if err != nil {
		logger.Fatal("Failed to load rate limits", zap.Error(err))
	}

	var cache embeddings.Cache
	var redisWrapperChecker *health.RedisChecker
	if cfg.Embeddings.EnableRedis {
		rc, err := embeddings.NewRedisCache(cfg.Embeddings.RedisAddr)
		if err != nil {
			logger.Warn("Redis cache unavailable; falling back to in-process LRU only",
				zap.String("addr", cfg.Embeddings.RedisAddr),
				zap.Error(err),
			)
		} else {
			cache = rc
			redisWrapperChecker = health.NewRedisChecker(rc.Wrapper(), logger)
		}
	}
	embedder := embeddings.NewService(cfg.Embeddings, cache, limits, logger)

	store, err := vectordb.New(cfg.VectorDB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize vector store", zap.Error(err))
	}

	var audit toolsearch.AuditLog
	var auditStore *persistence.Store
	if cfg.Persistence.PostgresDSN != "" {
		auditStore, err = persistence.New(cfg.Persistence.PostgresDSN, logger)
		if err != nil {
			logger.Fatal("Failed to connect execution audit store", zap.Error(err))
		}
		defer auditStore.Close()
		if err := auditStore.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to ensure audit schema", zap.Error(err))
		}
		audit = auditStore
	}

	manager := toolsearch.NewManager(toolsearch.Config{
		BatchSize: cfg.Search.BatchSize,
	}, embedder, store, audit, logger)

	// Provider endpoints are arbitrary third parties; calls go through the
	// same breaker layer as the vector store.
	providerClient := circuitbreaker.NewHTTPWrapper(
		&http.Client{Timeout: 30 * time.Second}, "provider_endpoints", logger)
	loader := actions.NewLoader(providerClient, logger)
	list, err := loader.LoadDirectory(cfg.Search.DefinitionsDir)
	if err != nil {
		logger.Fatal("Failed to load action definitions",
			zap.String("dir", cfg.Search.DefinitionsDir),
			zap.Error(err),
		)
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	if err := manager.Initialize(initCtx, list); err != nil {
		cancel()
		logger.Fatal("Failed to initialize tool search", zap.Error(err))
	}
	cancel()

	// Hot-reload: definition changes re-extract and rebuild the index.
	watcher, err := config.NewDefinitionsWatcher(cfg.Search.DefinitionsDir, func() error {
		list, err := loader.LoadDirectory(cfg.Search.DefinitionsDir)
		if err != nil {
			return err
		}
		manager.SetSource(list)
		reloadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return manager.Reindex(reloadCtx)
	}, logger)
	if err != nil {
		logger.Warn("Definitions watcher unavailable", zap.Error(err))
	} else if err := watcher.Start(); err != nil {
		logger.Warn("Definitions watcher failed to start", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	hm := health.NewManager(logger)
	_ = hm.RegisterChecker(health.NewReadinessChecker(func() bool {
		return manager.HealthCheck(context.Background()).Status == "healthy"
	}))
	_ = hm.RegisterChecker(health.NewVectorStoreChecker(func(ctx context.Context) (int, error) {
		st, err := store.Stats(ctx)
		if err != nil {
			return 0, err
		}
		return st.TotalVectorCount, nil
	}, logger))
	_ = hm.RegisterChecker(health.NewEmbeddingServiceChecker(cfg.Embeddings.BaseURL, logger))
	if redisWrapperChecker != nil {
		_ = hm.RegisterChecker(redisWrapperChecker)
	}
	_ = hm.Start(ctx)
	defer hm.Stop()

	mux := http.NewServeMux()
	health.NewHTTPHandler(hm, logger).RegisterRoutes(mux)

	auth := httpapi.NewBearerAuth(cfg.Server.AuthSecret, logger)
	httpapi.NewHandler(manager, logger).RegisterRoutes(mux, auth.Middleware)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("Tool search API listening",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("auth", auth.Enabled()),
			zap.String("index", store.IndexName()),
			zap.String("namespace", store.Namespace()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(ctx, 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
}
