package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/api/middlewares"
	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/ingest"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// handlerDB fakes the persistence surface the handlers touch. Anything not
// overridden panics through the embedded interface.
type handlerDB struct {
	core.Database

	mu         sync.Mutex
	users      map[string]*models.User
	doc        *models.Document
	created    []*models.Document
	deleted    []string
	listLimit  int
	listOffset int
	statuses   []string
	upserted   int
	hits       []models.RetrievedChunk
	gotQuery   *core.SearchQuery
}

func newHandlerDB() *handlerDB {
	return &handlerDB{users: map[string]*models.User{}, listLimit: -1, listOffset: -1}
}

func (d *handlerDB) CreateUser(ctx context.Context, u *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.Email] = u
	return nil
}

func (d *handlerDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[email]
	if !ok {
		return nil, core.Errf(core.CodeNotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (d *handlerDB) CreateDocument(ctx context.Context, doc *models.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = append(d.created, doc)
	return nil
}

func (d *handlerDB) lookup(matches bool) (*models.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil || !matches {
		return nil, core.Errf(core.CodeNotFound, "document not found")
	}
	cp := *d.doc
	return &cp, nil
}

func (d *handlerDB) GetDocumentByDocID(ctx context.Context, docID string) (*models.Document, error) {
	return d.lookup(d.doc != nil && d.doc.DocID == docID)
}

func (d *handlerDB) GetDocumentByStorageKey(ctx context.Context, key string) (*models.Document, error) {
	return d.lookup(d.doc != nil && d.doc.StorageKey() == key)
}

func (d *handlerDB) GetDocumentByURL(ctx context.Context, url string) (*models.Document, error) {
	return d.lookup(d.doc != nil && d.doc.SourceURL() == url)
}

func (d *handlerDB) ListDocumentsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listLimit = limit
	d.listOffset = offset
	return []models.Document{}, nil
}

func (d *handlerDB) DeleteDocument(ctx context.Context, docID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, docID)
	return nil
}

func (d *handlerDB) MarkDocumentProcessing(ctx context.Context, docID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, models.StatusProcessing)
	return nil
}

func (d *handlerDB) MarkDocumentReady(ctx context.Context, docID string, res core.ProcessingResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, models.StatusReady)
	return nil
}

func (d *handlerDB) MarkDocumentError(ctx context.Context, docID, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, models.StatusError)
	return nil
}

func (d *handlerDB) UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upserted += len(chunks)
	return nil
}

func (d *handlerDB) GetEmbeddingByHash(ctx context.Context, hash string) ([]float32, bool, error) {
	return nil, false, nil
}

func (d *handlerDB) SearchChunks(ctx context.Context, q core.SearchQuery) ([]models.RetrievedChunk, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gotQuery = &q
	return d.hits, nil
}

func (d *handlerDB) InsertRetrievalLog(ctx context.Context, rlog *models.RetrievalLog) error {
	return nil
}

type handlerStore struct {
	core.ObjectStore

	mu       sync.Mutex
	objects  map[string][]byte
	removals []string
}

func newHandlerStore() *handlerStore {
	return &handlerStore{objects: map[string][]byte{}}
}

func (s *handlerStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return "https://blobs.example.com/" + key, nil
}

func (s *handlerStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, core.Errf(core.CodeStorage, "object %q missing", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *handlerStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removals = append(s.removals, key)
	delete(s.objects, key)
	return nil
}

type handlerEmbedder struct{}

func (handlerEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (e handlerEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.EmbedText(ctx, texts[i])
	}
	return out, nil
}

type handlerLLM struct {
	deltas []string
}

func (l *handlerLLM) Generate(ctx context.Context, system, prompt string) (string, error) {
	return strings.Join(l.deltas, ""), nil
}

func (l *handlerLLM) GenerateStream(ctx context.Context, system, prompt string, fn func(delta string) error) error {
	for _, d := range l.deltas {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func testIngestConfig() ingest.Config {
	return ingest.Config{
		ChunkTokens:    7,
		OverlapTokens:  3,
		BatchSize:      2,
		BatchDelay:     time.Millisecond,
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
		PreviewChars:   100,
	}
}

func newDocHandler(db *handlerDB, store *handlerStore) *DocumentHandler {
	log := zap.NewNop()
	strategy := ingest.NewStrategy(ingest.StrategyCached, handlerEmbedder{}, db, testIngestConfig(), log)
	pipeline := ingest.NewPipeline(db, store, ingest.NewExtractor(), strategy, testIngestConfig(), log)
	workers := ingest.NewWorkers(pipeline, 1, 4, log)
	return NewDocumentHandler(db, store, pipeline, workers, log)
}

func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middlewares.WithUserID(req.Context(), "user-1"))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, contentType, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadCreatesDocumentAndQueues(t *testing.T) {
	db := newHandlerDB()
	store := newHandlerStore()
	h := newDocHandler(db, store)

	body, contentType := multipartUpload(t,
		map[string]string{"doc_id": "doc-7", "title": "Biology notes"},
		"notes.txt", "text/plain", "cell structure basics")
	req := authedRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "doc-7", resp["doc_id"])
	assert.Equal(t, models.StatusUploaded, resp["status"])
	assert.Equal(t, true, resp["queued"])

	require.Len(t, db.created, 1)
	doc := db.created[0]
	assert.Equal(t, "user-1", doc.UserID)
	assert.Equal(t, "Biology notes", doc.Title)
	assert.Equal(t, "user-1/doc-7/notes.txt", doc.StorageKey())
	assert.Equal(t, "https://blobs.example.com/user-1/doc-7/notes.txt", doc.Metadata.GetString(models.MetaBlobURL))
	assert.Equal(t, models.SourceUpload, doc.Metadata.GetString(models.MetaSourceType))

	assert.Equal(t, []byte("cell structure basics"), store.objects["user-1/doc-7/notes.txt"])
}

func TestUploadRequiresFile(t *testing.T) {
	h := newDocHandler(newHandlerDB(), newHandlerStore())

	body, contentType := multipartUpload(t, map[string]string{"title": "no file"}, "", "", "")
	req := authedRequest(http.MethodPost, "/api/documents/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, core.CodeValidation, decodeBody(t, rec)["code"])
}

func TestRegisterURLCreatesDocument(t *testing.T) {
	db := newHandlerDB()
	h := newDocHandler(db, newHandlerStore())

	req := authedRequest(http.MethodPost, "/api/documents/url",
		strings.NewReader(`{"url":"https://example.com/syllabus.pdf"}`))
	rec := httptest.NewRecorder()

	h.RegisterURL(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["doc_id"])

	require.Len(t, db.created, 1)
	doc := db.created[0]
	assert.Equal(t, "https://example.com/syllabus.pdf", doc.SourceURL())
	assert.Equal(t, models.SourceURL, doc.Metadata.GetString(models.MetaSourceType))
	assert.Equal(t, "example.com/syllabus.pdf", doc.Title)
	assert.Empty(t, doc.StorageKey())
}

func TestRegisterURLValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unsupported scheme", `{"url":"ftp://example.com/file"}`},
		{"no host", `{"url":"https://"}`},
		{"not a url", `{"url":"plain words"}`},
		{"empty", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newHandlerDB()
			h := newDocHandler(db, newHandlerStore())
			req := authedRequest(http.MethodPost, "/api/documents/url", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.RegisterURL(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, db.created)
		})
	}
}

func TestIngestRequiresExactlyOneRef(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no reference", `{}`},
		{"two references", `{"doc_id":"doc-1","blob_key":"k"}`},
		{"all three", `{"doc_id":"doc-1","blob_key":"k","blob_url":"https://x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newHandlerDB()
			h := newDocHandler(db, newHandlerStore())
			req := authedRequest(http.MethodPost, "/api/documents/ingest", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Ingest(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody(t, rec)
			assert.Equal(t, core.CodeValidation, resp["code"])
			assert.Contains(t, resp["error"], "exactly one")
			assert.Empty(t, db.statuses)
		})
	}
}

func TestIngestHidesForeignDocuments(t *testing.T) {
	db := newHandlerDB()
	db.doc = &models.Document{
		DocID:  "doc-1",
		UserID: "someone-else",
		Metadata: models.Metadata{
			models.MetaStorageKey: "someone-else/doc-1/notes.txt",
		},
	}
	h := newDocHandler(db, newHandlerStore())

	req := authedRequest(http.MethodPost, "/api/documents/ingest",
		strings.NewReader(`{"doc_id":"doc-1"}`))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, core.CodeNotFound, decodeBody(t, rec)["code"])
	assert.Empty(t, db.statuses, "foreign documents never enter the pipeline")
}

func TestIngestRunsPipeline(t *testing.T) {
	db := newHandlerDB()
	db.doc = &models.Document{
		ID:     3,
		DocID:  "doc-1",
		UserID: "user-1",
		Status: models.StatusUploaded,
		Metadata: models.Metadata{
			models.MetaStorageKey:  "user-1/doc-1/notes.txt",
			models.MetaContentType: "text/plain",
			models.MetaFileName:    "notes.txt",
		},
	}
	store := newHandlerStore()
	store.objects["user-1/doc-1/notes.txt"] = []byte("Hello world. This is chunk text.")
	h := newDocHandler(db, store)

	req := authedRequest(http.MethodPost, "/api/documents/ingest",
		strings.NewReader(`{"doc_id":"doc-1"}`))
	rec := httptest.NewRecorder()

	h.Ingest(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody(t, rec)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "doc-1", resp["doc_id"])
	assert.Equal(t, float64(2), resp["chunks_processed"])
	assert.Equal(t, models.StatusReady, resp["status"])
	assert.Equal(t, []string{models.StatusProcessing, models.StatusReady}, db.statuses)
	assert.Equal(t, 2, db.upserted)
}

func docRouter(h *DocumentHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/documents/{docID}", h.Get)
	r.Delete("/api/documents/{docID}", h.Delete)
	return r
}

func TestGetReturnsOwnDocument(t *testing.T) {
	db := newHandlerDB()
	db.doc = &models.Document{DocID: "doc-1", UserID: "user-1", Status: models.StatusReady}
	h := newDocHandler(db, newHandlerStore())

	req := authedRequest(http.MethodGet, "/api/documents/doc-1", nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	doc, ok := resp["document"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "doc-1", doc["doc_id"])
	assert.Equal(t, models.StatusReady, doc["status"])
}

func TestGetHidesForeignDocuments(t *testing.T) {
	db := newHandlerDB()
	db.doc = &models.Document{DocID: "doc-1", UserID: "someone-else"}
	h := newDocHandler(db, newHandlerStore())

	req := authedRequest(http.MethodGet, "/api/documents/doc-1", nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteRemovesDocumentAndBlob(t *testing.T) {
	db := newHandlerDB()
	db.doc = &models.Document{
		DocID:  "doc-1",
		UserID: "user-1",
		Metadata: models.Metadata{
			models.MetaStorageKey: "user-1/doc-1/notes.txt",
		},
	}
	store := newHandlerStore()
	store.objects["user-1/doc-1/notes.txt"] = []byte("bytes")
	h := newDocHandler(db, store)

	req := authedRequest(http.MethodDelete, "/api/documents/doc-1", nil)
	rec := httptest.NewRecorder()
	docRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"doc-1"}, db.deleted)
	assert.Equal(t, []string{"user-1/doc-1/notes.txt"}, store.removals)
}

func TestListClampsPagination(t *testing.T) {
	db := newHandlerDB()
	h := newDocHandler(db, newHandlerStore())

	req := authedRequest(http.MethodGet, "/api/documents?limit=5000&offset=-2", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, db.listLimit)
	assert.Equal(t, 0, db.listOffset)
}
