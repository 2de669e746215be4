package query

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/metrics"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// Response is the non-streaming result shape. Chunk content is truncated
// for display.
type Response struct {
	RequestID string                  `json:"request_id"`
	Chunks    []models.RetrievedChunk `json:"chunks"`
	Answer    string                  `json:"answer"`
	Streaming bool                    `json:"streaming"`
	LatencyMS int64                   `json:"latency_ms"`
}

// Engine runs one query end to end: embed the prompt, rank chunks, pack the
// context, then synthesize the answer in batch or streaming mode.
type Engine struct {
	db       core.Database
	embedder core.EmbeddingProvider
	search   *SearchEngine
	synth    *Synthesizer
	log      *zap.Logger
}

func NewEngine(db core.Database, embedder core.EmbeddingProvider, search *SearchEngine,
	synth *Synthesizer, log *zap.Logger) *Engine {
	return &Engine{db: db, embedder: embedder, search: search, synth: synth, log: log}
}

// retrieval carries the facts shared by both answer modes.
type retrieval struct {
	requestID string
	chunks    []models.RetrievedChunk
	latencyMS int64
}

// retrieve validates the request, embeds the prompt and runs the search.
// The retrieval log write is best-effort and never fails the query.
func (e *Engine) retrieve(ctx context.Context, req *Request) (*retrieval, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	start := time.Now()

	vec, err := e.embedder.EmbedText(ctx, req.Prompt)
	if err != nil {
		metrics.Queries.WithLabelValues("error").Inc()
		return nil, core.NewError(core.CodeEmbedding, "embed query", err)
	}

	chunks, err := e.search.Search(ctx, vec, req)
	if err != nil {
		metrics.Queries.WithLabelValues("error").Inc()
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.RetrievalDuration.Observe(elapsed.Seconds())
	ret := &retrieval{requestID: requestID, chunks: chunks, latencyMS: elapsed.Milliseconds()}
	e.logRetrieval(ctx, req, ret)
	return ret, nil
}

// Query answers in batch mode: the synthesis sequence is drained into one
// aggregate answer string.
func (e *Engine) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	ret, err := e.retrieve(ctx, &req)
	if err != nil {
		return nil, err
	}
	if len(ret.chunks) == 0 {
		metrics.Queries.WithLabelValues("no_results").Inc()
		return &Response{
			RequestID: ret.requestID,
			Chunks:    []models.RetrievedChunk{},
			Answer:    NoResultsAnswer,
			LatencyMS: time.Since(start).Milliseconds(),
		}, nil
	}

	var (
		sb      strings.Builder
		failure error
	)
	seq := e.synth.Synthesize(ctx, SynthesisInput{
		RequestID: ret.requestID,
		Prompt:    req.Prompt,
		System:    PackContext(ret.chunks),
		Chunks:    ret.chunks,
		LatencyMS: ret.latencyMS,
	})
	for ev := range seq {
		switch ev.Type {
		case EventToken:
			sb.WriteString(ev.Content)
		case EventError:
			failure = ev.Cause()
			if failure == nil {
				failure = core.Errf(core.CodeExternalAPI, "%s", ev.Error)
			}
		}
	}
	if failure != nil {
		return nil, failure
	}

	answer := sb.String()
	if answer == "" {
		answer = FallbackAnswer
	}
	return &Response{
		RequestID: ret.requestID,
		Chunks:    DisplayChunks(ret.chunks),
		Answer:    answer,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}

// Stream answers in streaming mode. Failures before the first event are
// returned as plain errors; from then on any failure arrives inside the
// sequence as a terminal error event.
func (e *Engine) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	ret, err := e.retrieve(ctx, &req)
	if err != nil {
		return nil, err
	}
	if len(ret.chunks) == 0 {
		metrics.Queries.WithLabelValues("no_results").Inc()
		return e.synth.NoResults(ret.requestID, ret.latencyMS), nil
	}
	return e.synth.Synthesize(ctx, SynthesisInput{
		RequestID: ret.requestID,
		Prompt:    req.Prompt,
		System:    PackContext(ret.chunks),
		Chunks:    ret.chunks,
		LatencyMS: ret.latencyMS,
	}), nil
}

func (e *Engine) logRetrieval(ctx context.Context, req *Request, ret *retrieval) {
	ids := make([]string, len(ret.chunks))
	for i, ch := range ret.chunks {
		ids[i] = ch.ID
	}
	err := e.db.InsertRetrievalLog(ctx, &models.RetrievalLog{
		RequestID: ret.requestID,
		UserID:    req.UserID,
		QueryText: req.Prompt,
		ChunkIDs:  ids,
		DocID:     req.DocID,
		TopK:      req.TopK,
		LatencyMS: ret.latencyMS,
	})
	if err != nil {
		e.log.Warn("retrieval log write failed",
			zap.String("request_id", ret.requestID), zap.Error(err))
	}
}
