package ingest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/metrics"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// Ref identifies the document to ingest by exactly one of its external doc
// id, its blob storage key, or a URL known for it.
type Ref struct {
	DocID   string `json:"doc_id,omitempty"`
	BlobKey string `json:"blob_key,omitempty"`
	BlobURL string `json:"blob_url,omitempty"`
}

// Result summarizes a successful ingestion run.
type Result struct {
	DocID           string `json:"doc_id"`
	ChunksProcessed int    `json:"chunks_processed"`
	TokenCount      int    `json:"token_count"`
	EmbedFailures   int    `json:"embed_failures,omitempty"`
	Status          string `json:"status"`
}

// Pipeline drives one document from raw bytes to searchable chunks:
// extract, clean, chunk, embed in batches, persist, then mark READY. Any
// stage failure propagates to the caller and triggers a best-effort ERROR
// marking that never replaces the primary failure.
type Pipeline struct {
	db        core.Database
	store     core.ObjectStore
	extractor core.TextExtractor
	strategy  Strategy
	chunker   *Chunker
	cfg       Config
	client    *http.Client
	log       *zap.Logger
}

// NewPipeline wires the pipeline. cfg usually starts from DefaultConfig.
func NewPipeline(db core.Database, store core.ObjectStore, extractor core.TextExtractor,
	strategy Strategy, cfg Config, log *zap.Logger) *Pipeline {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.PreviewChars < 1 {
		cfg.PreviewChars = DefaultConfig().PreviewChars
	}
	return &Pipeline{
		db:        db,
		store:     store,
		extractor: extractor,
		strategy:  strategy,
		chunker:   NewChunker(cfg.ChunkTokens, cfg.OverlapTokens),
		cfg:       cfg,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

// Ingest processes one document to a terminal status. On success the
// document is READY; on failure the error is returned and the document is
// marked ERROR best-effort.
func (p *Pipeline) Ingest(ctx context.Context, ref Ref) (*Result, error) {
	doc, err := p.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.process(ctx, doc)
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("error").Inc()
		p.markErrorBestEffort(ctx, doc.DocID, err)
		return nil, err
	}
	metrics.DocumentsIngested.WithLabelValues("ready").Inc()
	return res, nil
}

func (p *Pipeline) resolve(ctx context.Context, ref Ref) (*models.Document, error) {
	switch {
	case ref.DocID != "":
		return p.db.GetDocumentByDocID(ctx, ref.DocID)
	case ref.BlobKey != "":
		return p.db.GetDocumentByStorageKey(ctx, ref.BlobKey)
	case ref.BlobURL != "":
		return p.db.GetDocumentByURL(ctx, ref.BlobURL)
	default:
		return nil, core.Errf(core.CodeValidation, "document reference required")
	}
}

func (p *Pipeline) process(ctx context.Context, doc *models.Document) (*Result, error) {
	if err := p.db.MarkDocumentProcessing(ctx, doc.DocID); err != nil {
		return nil, err
	}
	p.log.Info("ingestion started",
		zap.String("doc_id", doc.DocID),
		zap.String("strategy", p.strategy.Name()))

	body, err := p.fetch(ctx, doc)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	raw, err := p.extractor.Extract(ctx, body, doc.ContentType(), doc.FileName())
	if err != nil {
		return nil, err
	}
	cleaned := CleanText(raw)
	if cleaned == "" {
		return nil, core.Errf(core.CodeEmptyContent, "document produced no usable text")
	}

	pieces := p.chunker.Split(cleaned)
	if len(pieces) == 0 {
		return nil, core.Errf(core.CodeEmptyContent, "document produced no chunks")
	}

	chunks := make([]models.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = models.DocumentChunk{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			ChunkIndex:  piece.Index,
			Content:     piece.Content,
			ContentHash: HashContent(piece.Content),
			TokenCount:  piece.TokenCount,
		}
	}

	embedded, failures, err := p.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(embedded) == 0 {
		return nil, core.Errf(core.CodeEmbedding, "all %d chunks failed to embed", len(chunks))
	}

	if err := p.db.UpsertChunks(ctx, embedded); err != nil {
		return nil, err
	}

	tokens := 0
	for i := range embedded {
		tokens += embedded[i].TokenCount
	}
	patch := models.Metadata{}
	if failures > 0 {
		patch[models.MetaEmbeddingFailures] = failures
	}
	if err := p.db.MarkDocumentReady(ctx, doc.DocID, core.ProcessingResult{
		ChunkCount:     len(embedded),
		TokenCount:     tokens,
		ContentPreview: truncateRunes(cleaned, p.cfg.PreviewChars),
		MetadataPatch:  patch,
	}); err != nil {
		return nil, err
	}

	p.log.Info("ingestion finished",
		zap.String("doc_id", doc.DocID),
		zap.Int("chunks", len(embedded)),
		zap.Int("tokens", tokens),
		zap.Int("embed_failures", failures))
	return &Result{
		DocID:           doc.DocID,
		ChunksProcessed: len(embedded),
		TokenCount:      tokens,
		EmbedFailures:   failures,
		Status:          models.StatusReady,
	}, nil
}

// fetch streams the document's raw bytes: from the object store for
// uploaded documents, over HTTP for URL-registered ones.
func (p *Pipeline) fetch(ctx context.Context, doc *models.Document) (io.ReadCloser, error) {
	if key := doc.StorageKey(); key != "" {
		return p.store.Download(ctx, key)
	}
	if url := doc.SourceURL(); url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, core.NewError(core.CodeStorage, "build source request", err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, core.NewError(core.CodeStorage, "fetch source url", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, core.Errf(core.CodeStorage, "fetch source url: status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
	return nil, core.Errf(core.CodeStorage, "document has no stored content")
}

// embedAll resolves embeddings in fixed-size batches. A batch settles fully
// (including its inter-batch delay) before the next starts. Per-chunk
// failures are tolerated; only chunks that embedded are returned.
func (p *Pipeline) embedAll(ctx context.Context, chunks []models.DocumentChunk) ([]models.DocumentChunk, int, error) {
	kept := make([]models.DocumentChunk, 0, len(chunks))
	failures := 0

	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		batch := chunks[start:end]
		for i, err := range p.strategy.EmbedBatch(ctx, batch) {
			if err != nil {
				failures++
				p.log.Warn("chunk embedding failed",
					zap.Int("chunk_index", batch[i].ChunkIndex), zap.Error(err))
				continue
			}
			kept = append(kept, batch[i])
		}

		if end < len(chunks) {
			select {
			case <-time.After(p.cfg.BatchDelay):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}
	}
	return kept, failures, nil
}

// markErrorBestEffort records the failure on the document. Its own failure
// is only logged so the primary error stays what the caller sees. The
// status write gets a fresh deadline because the primary context may
// already be canceled.
func (p *Pipeline) markErrorBestEffort(ctx context.Context, docID string, cause error) {
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	reason := core.CodeOf(cause) + ": " + core.MessageOf(cause)
	if err := p.db.MarkDocumentError(mctx, docID, reason); err != nil {
		p.log.Error("failed to mark document ERROR",
			zap.String("doc_id", docID), zap.Error(err))
	}
}

// truncateRunes bounds s to n characters, not bytes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
