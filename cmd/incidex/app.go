package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/incidex/internal/config"
	"github.com/kailas-cloud/incidex/internal/db"
	"github.com/kailas-cloud/incidex/internal/db/sqlite"
	"github.com/kailas-cloud/incidex/internal/db/valkey"
	"github.com/kailas-cloud/incidex/internal/domain"
	dominc "github.com/kailas-cloud/incidex/internal/domain/incident"
	logpkg "github.com/kailas-cloud/incidex/internal/logger"
	"github.com/kailas-cloud/incidex/internal/metrics"
	"github.com/kailas-cloud/incidex/internal/repository/embcache"
	"github.com/kailas-cloud/incidex/internal/repository/reduction"
	"github.com/kailas-cloud/incidex/internal/source"
	openaiEmb "github.com/kailas-cloud/incidex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/incidex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/incidex/internal/usecase/health"
	incidentuc "github.com/kailas-cloud/incidex/internal/usecase/incident"
)

// app is the composition root shared by all subcommands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *sqlite.Store
	cache     db.KV
	incidents *incidentuc.Service
	health    *healthuc.Service
	closers   []func() error
}

func newApp(ctx context.Context, cfg config.Config, env string) (*app, error) {
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	a.store, err = sqlite.NewStore(ctx, sqlite.Config{
		Path:            cfg.Database.Path,
		PageSize:        cfg.Database.PageSize,
		UpsertChunkSize: cfg.Database.UpsertChunkSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: document store: %w", domain.ErrAuth, err)
	}
	a.closers = append(a.closers, func() error { a.store.Close(); return nil })
	if err := a.store.WaitForReady(ctx, seconds(cfg.Database.ReadinessTimeout)); err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: document store not ready: %w", domain.ErrAuth, err)
	}

	// Embedding cache and reduction models live in Valkey when configured.
	var kv db.KVStore = a.store
	if cfg.Cache.Enabled() {
		cache, err := valkey.NewStore(valkey.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("%w: cache: %w", domain.ErrAuth, err)
		}
		a.closers = append(a.closers, func() error { cache.Close(); return nil })
		if err := cache.WaitForReady(ctx, seconds(cfg.Cache.ReadinessTimeout)); err != nil {
			a.Close()
			return nil, fmt.Errorf("%w: cache not ready: %w", domain.ErrAuth, err)
		}
		a.cache = cache
		kv = cache
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	docEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, kv, logger)
	queryEmbedder := buildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, kv, logger)

	src, closeSrc, err := source.New(source.Config{
		Kind:  cfg.Source.Kind,
		DSN:   cfg.Source.DSN,
		Query: cfg.Source.Query,
		Path:  cfg.Source.Path,
	}, dominc.Mapping, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: incident source: %w", domain.ErrAuth, err)
	}
	a.closers = append(a.closers, closeSrc)

	target := cfg.Ingestion.TargetDimensions
	if target < 0 {
		target = 0
	}
	a.incidents = incidentuc.New(src, docEmbedder, a.store, reduction.New(kv), incidentuc.Settings{
		Container:        cfg.Ingestion.Container,
		Dimensions:       cfg.VectorDimensions(),
		BatchSize:        cfg.Ingestion.BatchSize,
		Delay:            time.Duration(cfg.Ingestion.DelayMs) * time.Millisecond,
		TargetDimensions: target,
		TitleWeight:      cfg.Search.TitleWeight,
		SummaryWeight:    cfg.Search.SummaryWeight,
		MaxResults:       cfg.Search.MaxResults,
	}, logger).WithQueryEmbedder(queryEmbedder)

	a.health = healthuc.New(a.store, newEmbeddingHealthChecker(docEmbedder))
	if a.cache != nil {
		a.health.WithCache(a.cache)
	}

	logger.Info("Components ready",
		zap.String("database", cfg.Database.Path),
		zap.Bool("valkey_cache", cfg.Cache.Enabled()),
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.String("source", cfg.Source.Kind),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	cfg config.EmbeddingConfig,
	instruction string,
	kv db.KVStore,
	logger *zap.Logger,
) domain.EmbeddingProvider {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})

	cached := embcache.New(base, kv, metrics.EmbeddingCacheTotal, logger)

	var embedder domain.EmbeddingProvider = embeddinguc.NewInstrumentedEmbedder(
		cached, cfg.Provider, cfg.Model, logger,
	).WithMaxBatch(cfg.MaxBatch)

	// Instruction prefix (outermost, so the cache key includes it)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}
