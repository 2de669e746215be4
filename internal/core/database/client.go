// Package database implements the persistence boundary on Postgres with
// pgvector, accessed through database/sql over the pgx stdlib driver.
package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// Client wraps the connection pool and implements core.Database.
type Client struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens a pool against databaseURL and verifies connectivity.
func New(ctx context.Context, databaseURL string, log *zap.Logger) (*Client, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, core.NewError(core.CodeStorage, "open database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, core.NewError(core.CodeStorage, "connect to database", err)
	}
	return &Client{db: db, log: log}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return core.NewError(core.CodeStorage, "database unreachable", err)
	}
	return nil
}

func (c *Client) Close() error { return c.db.Close() }

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const qCreateUser = `
INSERT INTO users (id, first_name, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING created_at, updated_at`

func (c *Client) CreateUser(ctx context.Context, u *models.User) error {
	err := c.db.QueryRowContext(ctx, qCreateUser, u.ID, u.FirstName, u.Email, u.PasswordHash).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Errf(core.CodeValidation, "email already registered")
		}
		return core.NewError(core.CodeStorage, "create user", err)
	}
	return nil
}

const qUserColumns = `id, first_name, email, password_hash, created_at, updated_at`

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+qUserColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (c *Client) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+qUserColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errf(core.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, core.NewError(core.CodeStorage, "get user", err)
	}
	return &u, nil
}

const qDocColumns = `id, doc_id, user_id, title, status, content_preview,
	chunk_count, token_count, metadata, processed_at, created_at, updated_at`

const qCreateDocument = `
INSERT INTO documents (doc_id, user_id, title, status, metadata)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`

func (c *Client) CreateDocument(ctx context.Context, d *models.Document) error {
	if d.Status == "" {
		d.Status = models.StatusUploaded
	}
	err := c.db.QueryRowContext(ctx, qCreateDocument, d.DocID, d.UserID, d.Title, d.Status, d.Metadata).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Errf(core.CodeValidation, "document %q already exists", d.DocID)
		}
		return core.NewError(core.CodeStorage, "create document", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.DocID, &d.UserID, &d.Title, &d.Status, &d.ContentPreview,
		&d.ChunkCount, &d.TokenCount, &d.Metadata, &d.ProcessedAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errf(core.CodeNotFound, "document not found")
	}
	if err != nil {
		return nil, core.NewError(core.CodeStorage, "get document", err)
	}
	return &d, nil
}

func (c *Client) GetDocumentByDocID(ctx context.Context, docID string) (*models.Document, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+qDocColumns+` FROM documents WHERE doc_id = $1`, docID)
	return scanDocument(row)
}

func (c *Client) GetDocumentByStorageKey(ctx context.Context, key string) (*models.Document, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+qDocColumns+` FROM documents WHERE metadata->>'storage_key' = $1`, key)
	return scanDocument(row)
}

// GetDocumentByURL matches either the registered source URL or the stored
// blob's own URL, so both kinds of URL reference resolve.
func (c *Client) GetDocumentByURL(ctx context.Context, url string) (*models.Document, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+qDocColumns+` FROM documents
		 WHERE metadata->>'source_url' = $1 OR metadata->>'blob_url' = $1`, url)
	return scanDocument(row)
}

func (c *Client) ListDocumentsByUser(ctx context.Context, userID string, limit, offset int) ([]models.Document, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+qDocColumns+` FROM documents WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, core.NewError(core.CodeStorage, "list documents", err)
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError(core.CodeStorage, "list documents", err)
	}
	return docs, nil
}

func (c *Client) DeleteDocument(ctx context.Context, docID, userID string) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE doc_id = $1 AND user_id = $2`, docID, userID)
	if err != nil {
		return core.NewError(core.CodeStorage, "delete document", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Errf(core.CodeNotFound, "document not found")
	}
	return nil
}

func (c *Client) MarkDocumentProcessing(ctx context.Context, docID string) error {
	return c.setStatus(ctx, docID,
		`UPDATE documents SET status = $2, updated_at = NOW() WHERE doc_id = $1`,
		models.StatusProcessing)
}

const qMarkReady = `
UPDATE documents
SET status = $2,
    content_preview = $3,
    chunk_count = $4,
    token_count = $5,
    metadata = metadata || $6,
    processed_at = NOW(),
    updated_at = NOW()
WHERE doc_id = $1`

func (c *Client) MarkDocumentReady(ctx context.Context, docID string, res core.ProcessingResult) error {
	patch := res.MetadataPatch
	if patch == nil {
		patch = models.Metadata{}
	}
	r, err := c.db.ExecContext(ctx, qMarkReady, docID, models.StatusReady,
		res.ContentPreview, res.ChunkCount, res.TokenCount, patch)
	if err != nil {
		return core.NewError(core.CodePersistence, "mark document ready", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return core.Errf(core.CodeNotFound, "document not found")
	}
	return nil
}

const qMarkError = `
UPDATE documents
SET status = $2,
    metadata = jsonb_set(metadata, '{error}', to_jsonb($3::text)),
    updated_at = NOW()
WHERE doc_id = $1`

func (c *Client) MarkDocumentError(ctx context.Context, docID, reason string) error {
	r, err := c.db.ExecContext(ctx, qMarkError, docID, models.StatusError, reason)
	if err != nil {
		return core.NewError(core.CodePersistence, "mark document error", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return core.Errf(core.CodeNotFound, "document not found")
	}
	return nil
}

func (c *Client) setStatus(ctx context.Context, docID, query, status string) error {
	r, err := c.db.ExecContext(ctx, query, docID, status)
	if err != nil {
		return core.NewError(core.CodePersistence, "update document status", err)
	}
	if n, _ := r.RowsAffected(); n == 0 {
		return core.Errf(core.CodeNotFound, "document not found")
	}
	return nil
}
