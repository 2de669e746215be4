package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
	"github.com/mb4540/gift-of-time-edu-rag/internal/models"
)

// Chunks conflict on content_hash: identical text across any documents keeps
// the embedding already stored and is reassigned to the incoming document.
// The embedding column is never overwritten on conflict.
const qUpsertChunk = `
INSERT INTO document_chunks (id, document_id, chunk_index, content, content_hash, token_count, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (content_hash) DO UPDATE
SET document_id = EXCLUDED.document_id,
    chunk_index = EXCLUDED.chunk_index`

func (c *Client) UpsertChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewError(core.CodePersistence, "begin chunk transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, qUpsertChunk)
	if err != nil {
		return core.NewError(core.CodePersistence, "prepare chunk upsert", err)
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		_, err := stmt.ExecContext(ctx, ch.ID, ch.DocumentID, ch.ChunkIndex,
			ch.Content, ch.ContentHash, ch.TokenCount, pgvector.NewVector(ch.Embedding))
		if err != nil {
			return core.NewError(core.CodePersistence,
				fmt.Sprintf("persist chunk %d", ch.ChunkIndex), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.NewError(core.CodePersistence, "commit chunk transaction", err)
	}
	return nil
}

// GetEmbeddingByHash looks up a stored embedding for identical chunk text.
// A miss is (nil, false, nil), not an error.
func (c *Client) GetEmbeddingByHash(ctx context.Context, contentHash string) ([]float32, bool, error) {
	var vec pgvector.Vector
	err := c.db.QueryRowContext(ctx,
		`SELECT embedding FROM document_chunks WHERE content_hash = $1 AND embedding IS NOT NULL`,
		contentHash).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, core.NewError(core.CodeStorage, "embedding cache lookup", err)
	}
	return vec.Slice(), true, nil
}

func (c *Client) DeleteChunksByDocument(ctx context.Context, documentID int64) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return core.NewError(core.CodeStorage, "delete chunks", err)
	}
	return nil
}

// SearchChunks ranks stored chunks by descending cosine similarity to the
// query vector. <=> is pgvector's cosine distance operator, so similarity is
// 1 - distance and ordering by distance ascending yields best-first.
func (c *Client) SearchChunks(ctx context.Context, q core.SearchQuery) ([]models.RetrievedChunk, error) {
	where := []string{"c.embedding IS NOT NULL"}
	args := []any{pgvector.NewVector(q.Embedding)}

	if q.UserID != "" {
		args = append(args, q.UserID)
		where = append(where, fmt.Sprintf("d.user_id = $%d", len(args)))
	}
	if q.DocID != "" {
		args = append(args, q.DocID)
		where = append(where, fmt.Sprintf("d.doc_id = $%d", len(args)))
	}
	args = append(args, q.TopK)

	query := fmt.Sprintf(`
SELECT c.id, c.chunk_index, c.content,
       1 - (c.embedding <=> $1) AS similarity,
       d.title
FROM document_chunks c
JOIN documents d ON d.id = c.document_id
WHERE %s
ORDER BY c.embedding <=> $1
LIMIT $%d`, strings.Join(where, " AND "), len(args))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewError(core.CodeStorage, "vector search", err)
	}
	defer rows.Close()

	hits := make([]models.RetrievedChunk, 0, q.TopK)
	for rows.Next() {
		var h models.RetrievedChunk
		if err := rows.Scan(&h.ID, &h.ChunkIndex, &h.Content, &h.Similarity, &h.DocumentTitle); err != nil {
			return nil, core.NewError(core.CodeStorage, "scan search hit", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewError(core.CodeStorage, "vector search", err)
	}
	return hits, nil
}

const qInsertRetrievalLog = `
INSERT INTO retrieval_logs (request_id, user_id, query_text, chunk_ids, doc_id, top_k, latency_ms)
VALUES ($1, NULLIF($2, '')::uuid, $3, $4, NULLIF($5, ''), $6, $7)`

func (c *Client) InsertRetrievalLog(ctx context.Context, rlog *models.RetrievalLog) error {
	ids, err := json.Marshal(rlog.ChunkIDs)
	if err != nil {
		return core.NewError(core.CodeStorage, "encode chunk ids", err)
	}
	_, err = c.db.ExecContext(ctx, qInsertRetrievalLog,
		rlog.RequestID, rlog.UserID, rlog.QueryText, ids, rlog.DocID, rlog.TopK, rlog.LatencyMS)
	if err != nil {
		return core.NewError(core.CodeStorage, "insert retrieval log", err)
	}
	return nil
}
