package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/api/middlewares"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/ingest"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// maxUploadBytes bounds multipart memory buffering; larger files spill to
// disk through the stdlib's multipart handling.
const maxUploadBytes = 32 << 20

// DocumentHandler covers the document lifecycle: upload or URL registration,
// listing, status polling, deletion and the synchronous ingestion trigger.
type DocumentHandler struct {
	db       core.Database
	store    core.ObjectStore
	pipeline *ingest.Pipeline
	workers  *ingest.Workers
	log      *zap.Logger
}

func NewDocumentHandler(db core.Database, store core.ObjectStore, pipeline *ingest.Pipeline,
	workers *ingest.Workers, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{db: db, store: store, pipeline: pipeline, workers: workers, log: log}
}

// Upload stores the file in the object store, creates the document UPLOADED
// and queues background ingestion.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.UserID(r.Context())
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, h.log, core.NewError(core.CodeValidation, "invalid multipart form", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, h.log, core.Errf(core.CodeValidation, "a file field is required"))
		return
	}
	defer file.Close()

	docID := strings.TrimSpace(r.FormValue("doc_id"))
	if docID == "" {
		docID = uuid.NewString()
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = header.Filename
	}
	contentType := header.Header.Get("Content-Type")

	key := fmt.Sprintf("%s/%s/%s", userID, docID, header.Filename)
	location, err := h.store.Upload(r.Context(), key, file, contentType)
	if err != nil {
		respondError(w, h.log, err)
		return
	}

	doc := &models.Document{
		DocID:  docID,
		UserID: userID,
		Title:  title,
		Status: models.StatusUploaded,
		Metadata: models.Metadata{
			models.MetaFileName:    header.Filename,
			models.MetaContentType: contentType,
			models.MetaByteSize:    header.Size,
			models.MetaTenantID:    userID,
			models.MetaStorageKey:  key,
			models.MetaBlobURL:     location,
			models.MetaSourceType:  models.SourceUpload,
		},
	}
	if err := h.db.CreateDocument(r.Context(), doc); err != nil {
		// The blob is orphaned if the row failed; remove it best-effort.
		if derr := h.store.Delete(r.Context(), key); derr != nil {
			h.log.Warn("orphaned blob cleanup failed", zap.String("key", key), zap.Error(derr))
		}
		respondError(w, h.log, err)
		return
	}

	queued := h.workers.Enqueue(ingest.Ref{DocID: docID})
	respond(w, http.StatusCreated, map[string]any{
		"success": true,
		"doc_id":  docID,
		"status":  doc.Status,
		"queued":  queued,
	})
}

type registerURLRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	DocID string `json:"doc_id"`
}

// RegisterURL creates a document whose bytes are fetched from a URL at
// ingestion time; nothing is stored in the object store.
func (h *DocumentHandler) RegisterURL(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.UserID(r.Context())
	var req registerURLRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	parsed, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		respondError(w, h.log, core.Errf(core.CodeValidation, "a valid http(s) url is required"))
		return
	}

	docID := strings.TrimSpace(req.DocID)
	if docID == "" {
		docID = uuid.NewString()
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = parsed.Host + parsed.Path
	}

	doc := &models.Document{
		DocID:  docID,
		UserID: userID,
		Title:  title,
		Status: models.StatusUploaded,
		Metadata: models.Metadata{
			models.MetaFileName:   parsed.Path,
			models.MetaTenantID:   userID,
			models.MetaSourceURL:  parsed.String(),
			models.MetaSourceType: models.SourceURL,
		},
	}
	if err := h.db.CreateDocument(r.Context(), doc); err != nil {
		respondError(w, h.log, err)
		return
	}

	queued := h.workers.Enqueue(ingest.Ref{DocID: docID})
	respond(w, http.StatusCreated, map[string]any{
		"success": true,
		"doc_id":  docID,
		"status":  doc.Status,
		"queued":  queued,
	})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.UserID(r.Context())
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	docs, err := h.db.ListDocumentsByUser(r.Context(), userID, limit, offset)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"success": true, "documents": docs})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ownedDocument(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"success": true, "document": doc})
}

// Delete removes the document row (chunks cascade) and then the stored blob
// best-effort.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.UserID(r.Context())
	doc, err := h.ownedDocument(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.db.DeleteDocument(r.Context(), doc.DocID, userID); err != nil {
		respondError(w, h.log, err)
		return
	}
	if key := doc.StorageKey(); key != "" {
		if err := h.store.Delete(r.Context(), key); err != nil {
			h.log.Warn("blob delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	h.log.Info("document deleted", zap.String("doc_id", doc.DocID))
	respond(w, http.StatusOK, map[string]any{"success": true, "doc_id": doc.DocID})
}

type ingestRequest struct {
	DocID   string `json:"doc_id"`
	BlobKey string `json:"blob_key"`
	BlobURL string `json:"blob_url"`
}

// Ingest runs the pipeline synchronously for a document referenced by
// exactly one of doc_id, blob_key or blob_url.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.UserID(r.Context())
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	refs := 0
	for _, v := range []string{req.DocID, req.BlobKey, req.BlobURL} {
		if strings.TrimSpace(v) != "" {
			refs++
		}
	}
	if refs != 1 {
		respondError(w, h.log, core.Errf(core.CodeValidation,
			"exactly one of doc_id, blob_key or blob_url is required"))
		return
	}

	doc, err := h.resolveRef(r, req)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if doc.UserID != userID {
		// Another user's document must look nonexistent.
		respondError(w, h.log, core.Errf(core.CodeNotFound, "document not found"))
		return
	}

	res, err := h.pipeline.Ingest(r.Context(), ingest.Ref{DocID: doc.DocID})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"success":          true,
		"doc_id":           res.DocID,
		"chunks_processed": res.ChunksProcessed,
		"status":           res.Status,
	})
}

func (h *DocumentHandler) resolveRef(r *http.Request, req ingestRequest) (*models.Document, error) {
	switch {
	case req.DocID != "":
		return h.db.GetDocumentByDocID(r.Context(), req.DocID)
	case req.BlobKey != "":
		return h.db.GetDocumentByStorageKey(r.Context(), req.BlobKey)
	default:
		return h.db.GetDocumentByURL(r.Context(), req.BlobURL)
	}
}

// ownedDocument loads the path's document and hides other users' documents
// behind NotFound.
func (h *DocumentHandler) ownedDocument(r *http.Request) (*models.Document, error) {
	doc, err := h.db.GetDocumentByDocID(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		return nil, err
	}
	if doc.UserID != middlewares.UserID(r.Context()) {
		return nil, core.Errf(core.CodeNotFound, "document not found")
	}
	return doc, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
