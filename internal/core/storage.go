package core

import (
	"context"
	"io"

	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// SearchQuery parameterizes a ranked similarity search over stored chunks.
type SearchQuery struct {
	// Embedding is the query vector chunks are ranked against.
	Embedding []float32
	// TopK caps the number of hits returned.
	TopK int
	// UserID restricts hits to documents owned by one user. Empty means no
	// owner restriction.
	UserID string
	// DocID restricts hits to a single document. Empty means search all.
	DocID string
}

// ProcessingResult carries the summary facts recorded when ingestion
// finishes successfully.
type ProcessingResult struct {
	ChunkCount     int
	TokenCount     int
	ContentPreview string
	// MetadataPatch is merged into the document's metadata bag, used to
	// record partial embedding failures.
	MetadataPatch models.Metadata
}

// Database is the persistence boundary for users, documents, chunks and
// retrieval logs.
type Database interface {
	// Users.
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// Documents.
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocumentByDocID(ctx context.Context, docID string) (*models.Document, error)
	GetDocumentByStorageKey(ctx context.Context, key string) (*models.Document, error)
	GetDocumentByURL(ctx context.Context, url string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Document, error)
	DeleteDocument(ctx context.Context, docID, userID string) error

	// Status transitions. MarkDocumentProcessing moves UPLOADED to
	// PROCESSING, MarkDocumentReady records the processing summary and
	// moves to READY, MarkDocumentError records the failure reason and
	// moves to ERROR.
	MarkDocumentProcessing(ctx context.Context, docID string) error
	MarkDocumentReady(ctx context.Context, docID string, res ProcessingResult) error
	MarkDocumentError(ctx context.Context, docID, reason string) error

	// Chunks.
	UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) error
	GetEmbeddingByHash(ctx context.Context, contentHash string) ([]float32, bool, error)
	DeleteChunksByDocument(ctx context.Context, documentID int64) error
	SearchChunks(ctx context.Context, q SearchQuery) ([]models.RetrievedChunk, error)

	// Retrieval logs.
	InsertRetrievalLog(ctx context.Context, rlog *models.RetrievalLog) error

	Ping(ctx context.Context) error
	Close() error
}

// ObjectStore is the blob boundary for raw uploaded documents.
type ObjectStore interface {
	// Upload stores body under key and returns the object's URL.
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// Download streams the object back. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
