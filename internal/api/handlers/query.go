package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/api/middlewares"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/query"
)

// QueryHandler answers questions over the caller's indexed documents, as a
// single JSON response or as a server-sent event stream when the client
// negotiates one.
type QueryHandler struct {
	engine *query.Engine
	log    *zap.Logger
}

func NewQueryHandler(engine *query.Engine, log *zap.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, log: log}
}

type queryRequest struct {
	Prompt string `json:"prompt"`
	DocID  string `json:"doc_id"`
	// TopK distinguishes absent (default applies) from an explicit zero
	// (rejected).
	TopK *int `json:"top_k"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	q := query.Request{
		Prompt: strings.TrimSpace(req.Prompt),
		DocID:  strings.TrimSpace(req.DocID),
		TopK:   query.DefaultTopK,
		UserID: middlewares.UserID(r.Context()),
	}
	if req.TopK != nil {
		q.TopK = *req.TopK
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.stream(w, r, q)
		return
	}
	resp, err := h.engine.Query(r.Context(), q)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respond(w, http.StatusOK, resp)
}

// stream relays the synthesis sequence as SSE frames. Failures before the
// first event still produce a plain JSON error; afterwards the sequence's
// own terminal error event closes the stream.
func (h *QueryHandler) stream(w http.ResponseWriter, r *http.Request, q query.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, h.log, core.Errf(core.CodeInternal, "streaming not supported"))
		return
	}
	seq, err := h.engine.Stream(r.Context(), q)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range seq {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("encode stream event", zap.Error(err))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}
