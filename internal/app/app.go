// Package app wires configuration, storage, model providers and HTTP into
// one runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/config"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core/database"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core/llm"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core/objectstore"
	"github.com/mb4540/gift-of-time-edu-rag/internal/ingest"
	"github.com/mb4540/gift-of-time-edu-rag/internal/query"
	"github.com/mb4540/gift-of-time-edu-rag/internal/ratelimit"
)

// App holds the wired service graph.
type App struct {
	Cfg     *config.Config
	Log     *zap.Logger
	DB      core.Database
	Store   core.ObjectStore
	Gemini  *genai.Client
	Redis   *redis.Client
	Limiter core.RateLimiter

	Pipeline *ingest.Pipeline
	Workers  *ingest.Workers
	Engine   *query.Engine
}

// New connects the backends and wires the pipeline and query engine.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.New(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := db.Bootstrap(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store, err := objectstore.New(ctx, objectstore.Options{
		Region:          cfg.AWSRegion,
		Bucket:          cfg.S3Bucket,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		db.Close()
		return nil, err
	}
	embedder := llm.NewGeminiEmbedder(gemini, cfg.EmbeddingModel, log)
	generator := llm.NewGeminiLLM(gemini, cfg.GenerationModel, log)

	ingestCfg := ingest.DefaultConfig()
	strategy := ingest.NewStrategy(cfg.EmbedStrategy, embedder, db, ingestCfg, log)
	pipeline := ingest.NewPipeline(db, store, ingest.NewExtractor(), strategy, ingestCfg, log)
	workers := ingest.NewWorkers(pipeline, 2, 64, log)

	engine := query.NewEngine(db, embedder,
		query.NewSearchEngine(db, log),
		query.NewSynthesizer(generator, log),
		log)

	a := &App{
		Cfg:      cfg,
		Log:      log,
		DB:       db,
		Store:    store,
		Gemini:   gemini,
		Pipeline: pipeline,
		Workers:  workers,
		Engine:   engine,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.Limiter = ratelimit.NewRedis(a.Redis, cfg.RateLimitPerMinute, time.Minute)
		log.Info("rate limiting through redis")
	} else {
		a.Limiter = ratelimit.NewMemory(cfg.RateLimitPerMinute)
		log.Info("rate limiting in process")
	}

	return a, nil
}

// Close releases clients in reverse construction order.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Gemini != nil {
		_ = a.Gemini.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
