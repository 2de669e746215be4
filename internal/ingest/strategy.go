package ingest

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/metrics"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// Strategy names accepted by NewStrategy.
const (
	StrategyDirect = "direct"
	StrategyCached = "cached"
)

// Strategy resolves embedding vectors for one settled batch of chunks,
// filling Embedding in place. The returned slice parallels the batch: nil
// for a chunk that embedded, the failure cause otherwise.
type Strategy interface {
	Name() string
	EmbedBatch(ctx context.Context, batch []models.DocumentChunk) []error
}

// EmbeddingCache is the content-hash lookup the cached strategy consults
// before calling the embedding API.
type EmbeddingCache interface {
	GetEmbeddingByHash(ctx context.Context, contentHash string) ([]float32, bool, error)
}

// NewStrategy selects the embedding strategy by configured name. Anything
// other than "direct" selects the cached strategy.
func NewStrategy(name string, provider core.EmbeddingProvider, cache EmbeddingCache, cfg Config, log *zap.Logger) Strategy {
	if name == StrategyDirect {
		return &Direct{Provider: provider}
	}
	return &CachedWithRetry{
		Provider:       provider,
		Cache:          cache,
		Attempts:       cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Log:            log,
	}
}

// Direct embeds the whole batch in one API round trip, with no cache and no
// retry. A failed call fails every chunk in the batch.
type Direct struct {
	Provider core.EmbeddingProvider
}

func (d *Direct) Name() string { return StrategyDirect }

func (d *Direct) EmbedBatch(ctx context.Context, batch []models.DocumentChunk) []error {
	errs := make([]error, len(batch))
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Content
	}
	vecs, err := d.Provider.EmbedTexts(ctx, texts)
	if err != nil {
		for i := range errs {
			errs[i] = err
		}
		return errs
	}
	for i := range batch {
		batch[i].Embedding = vecs[i]
		metrics.ChunksEmbedded.WithLabelValues("api").Inc()
	}
	return errs
}

// CachedWithRetry reuses stored vectors by content hash and retries
// transient API failures per chunk with exponential backoff. Chunks in the
// batch are resolved concurrently.
type CachedWithRetry struct {
	Provider       core.EmbeddingProvider
	Cache          EmbeddingCache
	Attempts       uint
	RetryBaseDelay time.Duration
	Log            *zap.Logger
}

func (s *CachedWithRetry) Name() string { return StrategyCached }

func (s *CachedWithRetry) EmbedBatch(ctx context.Context, batch []models.DocumentChunk) []error {
	errs := make([]error, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i := range batch {
		g.Go(func() error {
			errs[i] = s.resolve(gctx, &batch[i])
			return nil
		})
	}
	// Workers never return errors; failures land in errs.
	_ = g.Wait()
	return errs
}

func (s *CachedWithRetry) resolve(ctx context.Context, ch *models.DocumentChunk) error {
	vec, ok, err := s.Cache.GetEmbeddingByHash(ctx, ch.ContentHash)
	if err != nil {
		// Cache trouble must not fail the chunk; fall through to the API.
		s.Log.Warn("embedding cache lookup failed",
			zap.String("content_hash", ch.ContentHash), zap.Error(err))
	} else if ok {
		ch.Embedding = vec
		metrics.ChunksEmbedded.WithLabelValues("cache").Inc()
		return nil
	}

	vec, err = retry.DoWithData(
		func() ([]float32, error) {
			return s.Provider.EmbedText(ctx, ch.Content)
		},
		retry.Context(ctx),
		retry.Attempts(s.Attempts),
		retry.Delay(s.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			metrics.EmbeddingRetries.Inc()
			s.Log.Warn("embedding call failed, retrying",
				zap.Uint("attempt", n+1),
				zap.Int("chunk_index", ch.ChunkIndex),
				zap.Error(err))
		}),
	)
	if err != nil {
		return core.NewError(core.CodeEmbedding, "embedding retries exhausted", err)
	}
	ch.Embedding = vec
	metrics.ChunksEmbedded.WithLabelValues("api").Inc()
	return nil
}
