package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/groundqa/internal/model"
)

// ChunkRepo stores indexed chunks with their vectors in postgres.
type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceDocument swaps every chunk of one document in a single transaction,
// so readers never observe a half-ingested document.
func (r *ChunkRepo) ReplaceDocument(ctx context.Context, documentID string, chunks []model.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO chunks (chunk_id, document_id, position, text, span_kind, span_start, span_end,
			source_title, source_url, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now().Unix()
	for _, c := range chunks {
		if c.DocumentID != documentID {
			return fmt.Errorf("chunk %s belongs to document %s, not %s", c.ChunkID, c.DocumentID, documentID)
		}
		if _, err := tx.ExecContext(ctx, insert,
			c.ChunkID,
			c.DocumentID,
			c.Position,
			c.Text,
			c.Span.Kind,
			c.Span.Start,
			c.Span.End,
			c.SourceTitle,
			c.SourceURL,
			pgvector.NewVector(c.Embedding),
			now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListChunks returns all chunks in insertion order.
func (r *ChunkRepo) ListChunks(ctx context.Context) ([]model.Chunk, error) {
	const query = `
		SELECT chunk_id, document_id, position, text, span_kind, span_start, span_end,
			source_title, source_url, embedding
		FROM chunks
		ORDER BY seq ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Position, &c.Text, &c.Span.Kind,
			&c.Span.Start, &c.Span.End, &c.SourceTitle, &c.SourceURL, &vec); err != nil {
			return nil, err
		}
		c.Embedding = vec.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}
