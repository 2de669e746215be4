package query

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/metrics"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// Answer literals for the two degenerate outcomes.
const (
	// NoResultsAnswer is returned when the search matched nothing.
	NoResultsAnswer = "I could not find relevant information in the indexed documents."
	// FallbackAnswer replaces an answer the model returned empty.
	FallbackAnswer = "I was unable to generate an answer from the provided context."
)

// EventType labels the payloads of a synthesis sequence.
type EventType string

const (
	EventMetadata EventType = "metadata"
	EventChunks   EventType = "chunks"
	EventToken    EventType = "token"
	EventEnd      EventType = "end"
	EventError    EventType = "error"
)

// Event is one element of a synthesis sequence. Which fields are meaningful
// depends on Type; MarshalJSON emits exactly the wire shape for each.
type Event struct {
	Type      EventType
	RequestID string
	LatencyMS int64
	Chunks    []models.RetrievedChunk
	Content   string
	Error     string

	// cause carries the underlying error to in-process consumers draining
	// the sequence. It never reaches the wire.
	cause error
}

// Cause returns the underlying error behind an error event, if any.
func (e Event) Cause() error { return e.cause }

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventMetadata:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			RequestID string    `json:"request_id"`
			LatencyMS int64     `json:"latency_ms"`
		}{e.Type, e.RequestID, e.LatencyMS})
	case EventChunks:
		chunks := e.Chunks
		if chunks == nil {
			chunks = []models.RetrievedChunk{}
		}
		return json.Marshal(struct {
			Type   EventType               `json:"type"`
			Chunks []models.RetrievedChunk `json:"chunks"`
		}{e.Type, chunks})
	case EventToken:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	case EventError:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{e.Type, e.Error})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
		}{e.Type})
	}
}

// SynthesisInput is everything one answer needs: the packed context as the
// system message, the user prompt, and the retrieval facts for the leading
// metadata and chunks events.
type SynthesisInput struct {
	RequestID string
	Prompt    string
	System    string
	Chunks    []models.RetrievedChunk
	LatencyMS int64
}

// Synthesizer drives answer generation as a lazy, finite event sequence:
// metadata, chunks, zero or more tokens, then exactly one of end or error.
// Batch callers drain the sequence into one string; streaming callers relay
// each event.
type Synthesizer struct {
	llm core.LLMProvider
	log *zap.Logger
}

func NewSynthesizer(llm core.LLMProvider, log *zap.Logger) *Synthesizer {
	return &Synthesizer{llm: llm, log: log}
}

// Synthesize starts generation and returns the event sequence. The sequence
// is closed when done; the caller must drain it. If the caller's context
// ends, the sequence closes without a terminal event since nobody is left
// to observe one.
func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) <-chan Event {
	out := make(chan Event, 8)
	go func() {
		defer close(out)
		emit := func(e Event) bool {
			select {
			case out <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(Event{Type: EventMetadata, RequestID: in.RequestID, LatencyMS: in.LatencyMS}) {
			return
		}
		if !emit(Event{Type: EventChunks, Chunks: DisplayChunks(in.Chunks)}) {
			return
		}

		err := s.llm.GenerateStream(ctx, in.System, in.Prompt, func(delta string) error {
			if !emit(Event{Type: EventToken, Content: delta}) {
				return context.Cause(ctx)
			}
			return nil
		})
		if err != nil {
			s.log.Error("answer generation failed",
				zap.String("request_id", in.RequestID), zap.Error(err))
			metrics.Queries.WithLabelValues("error").Inc()
			emit(Event{Type: EventError, Error: core.MessageOf(err), cause: err})
			return
		}
		metrics.Queries.WithLabelValues("answered").Inc()
		emit(Event{Type: EventEnd})
	}()
	return out
}

// NoResults produces the degenerate sequence for an empty retrieval: the
// no-results answer as a single token. The buffer holds the whole sequence,
// so the goroutine finishes even if the caller walks away.
func (s *Synthesizer) NoResults(requestID string, latencyMS int64) <-chan Event {
	out := make(chan Event, 4)
	out <- Event{Type: EventMetadata, RequestID: requestID, LatencyMS: latencyMS}
	out <- Event{Type: EventChunks, Chunks: []models.RetrievedChunk{}}
	out <- Event{Type: EventToken, Content: NoResultsAnswer}
	out <- Event{Type: EventEnd}
	close(out)
	return out
}

// displayContentChars bounds chunk content in responses and chunk events.
const displayContentChars = 200

// DisplayChunks returns display copies of hits with content truncated to
// 200 characters plus an ellipsis.
func DisplayChunks(chunks []models.RetrievedChunk) []models.RetrievedChunk {
	out := make([]models.RetrievedChunk, len(chunks))
	for i, ch := range chunks {
		if r := []rune(ch.Content); len(r) > displayContentChars {
			ch.Content = string(r[:displayContentChars]) + "..."
		}
		out[i] = ch
	}
	return out
}
