package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Document lifecycle states. A document starts UPLOADED, moves to
// PROCESSING when ingestion begins, and ends READY or ERROR.
const (
	StatusUploaded   = "UPLOADED"
	StatusProcessing = "PROCESSING"
	StatusReady      = "READY"
	StatusError      = "ERROR"
)

// Source types for a document.
const (
	SourceUpload = "upload"
	SourceURL    = "url"
)

// Well-known keys inside Document.Metadata. The map is open: callers may
// attach additional keys, these are the ones the pipeline reads or writes.
const (
	MetaFileName          = "file_name"
	MetaContentType       = "content_type"
	MetaByteSize          = "byte_size"
	MetaTenantID          = "tenant_id"
	MetaStorageKey        = "storage_key"
	MetaSourceURL         = "source_url"
	MetaBlobURL           = "blob_url"
	MetaSourceType        = "source_type"
	MetaEmbeddingFailures = "embedding_failures"
)

// Metadata is the open key/value bag attached to a document, persisted as a
// single JSONB column.
type Metadata map[string]any

// Value implements driver.Valuer so Metadata can be bound as a query
// parameter.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for reading the JSONB column back.
func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = Metadata{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("metadata: cannot scan %T", src)
	}
	return json.Unmarshal(raw, m)
}

// GetString returns the metadata value for key if it is a string.
func (m Metadata) GetString(key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// User represents an authenticated user of the system.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Document represents an uploaded or URL-registered document.
//
// ID:      storage-assigned integer, internal to the database.
// DocID:   opaque external identifier used on the API surface.
// Status:  one of the Status* constants above.
type Document struct {
	ID             int64      `json:"-"`
	DocID          string     `json:"doc_id"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	ContentPreview string     `json:"content_preview,omitempty"`
	ChunkCount     int        `json:"chunk_count"`
	TokenCount     int        `json:"token_count"`
	Metadata       Metadata   `json:"metadata"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StorageKey returns the object-store key the raw bytes live under, or ""
// for URL-sourced documents that have no stored blob.
func (d *Document) StorageKey() string { return d.Metadata.GetString(MetaStorageKey) }

// SourceURL returns the fetchable origin URL, or "" for uploaded documents.
func (d *Document) SourceURL() string { return d.Metadata.GetString(MetaSourceURL) }

// ContentType returns the declared media type recorded at upload time.
func (d *Document) ContentType() string { return d.Metadata.GetString(MetaContentType) }

// FileName returns the original file name recorded at upload time.
func (d *Document) FileName() string { return d.Metadata.GetString(MetaFileName) }

// DocumentChunk is one overlap-aware segment of a document's cleaned text,
// the unit of embedding and retrieval.
//
// ChunkIndex:  0-based position inside the owning document.
// ContentHash: deterministic digest of Content; globally unique, so chunks
//              with identical text share one stored embedding.
type DocumentChunk struct {
	ID          string    `json:"id"`
	DocumentID  int64     `json:"document_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	TokenCount  int       `json:"token_count"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// RetrievedChunk is a search hit: a chunk annotated with its rank score and
// the owning document's title for display.
type RetrievedChunk struct {
	ID            string  `json:"id"`
	ChunkIndex    int     `json:"chunk_index"`
	Content       string  `json:"content"`
	Similarity    float64 `json:"similarity"`
	DocumentTitle string  `json:"document_title"`
}

// RetrievalLog records one query: which chunks were returned, in rank order,
// and how long retrieval took. Append-only, written best-effort.
type RetrievalLog struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id,omitempty"`
	QueryText string    `json:"query_text"`
	ChunkIDs  []string  `json:"chunk_ids"`
	DocID     string    `json:"doc_id,omitempty"`
	TopK      int       `json:"top_k"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}
