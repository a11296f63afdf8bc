package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/config"
	"github.com/xxxsen/groundqa/internal/db"
	"github.com/xxxsen/groundqa/internal/model"
)

func TestChunkAndCacheRepo_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres test")
	}
	ctx := context.Background()
	conn, err := db.Open(config.DatabaseConfig{Driver: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, db.ApplyMigrations(conn, "postgres"))

	chunks := NewChunkRepo(conn)
	require.NoError(t, chunks.ReplaceDocument(ctx, "doc-test", nil))
	err = chunks.ReplaceDocument(ctx, "doc-test", []model.Chunk{
		{ChunkID: "doc-test:0", DocumentID: "doc-test", Text: "a", Position: 0, Span: model.Span{Kind: model.SpanKindTime, Start: 0, End: 5}, Embedding: []float32{1, 0}},
		{ChunkID: "doc-test:1", DocumentID: "doc-test", Text: "b", Position: 1, Span: model.Span{Kind: model.SpanKindTime, Start: 5, End: 9}, Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	list, err := chunks.ListChunks(ctx)
	require.NoError(t, err)
	var found []model.Chunk
	for _, c := range list {
		if c.DocumentID == "doc-test" {
			found = append(found, c)
		}
	}
	require.Len(t, found, 2)
	require.Equal(t, []float32{0, 1}, found[1].Embedding)
	require.NoError(t, chunks.ReplaceDocument(ctx, "doc-test", nil))
	list, err = chunks.ListChunks(ctx)
	require.NoError(t, err)
	for _, c := range list {
		require.NotEqual(t, "doc-test", c.DocumentID)
	}

	cache := NewEmbeddingCacheRepo(conn)
	item := &model.EmbeddingCache{ModelName: "m", TaskType: model.TaskTypeQuery, ContentHash: "h", Embedding: []float32{0.5, 0.25}, Ctime: 1}
	require.NoError(t, cache.Save(ctx, item))
	got, ok, err := cache.Get(ctx, "m", model.TaskTypeQuery, "h")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, item.Embedding, got)
	_, err = cache.DeleteBefore(ctx, time.Now().Unix())
	require.NoError(t, err)
	_, ok, err = cache.Get(ctx, "m", model.TaskTypeQuery, "h")
	require.NoError(t, err)
	require.False(t, ok)
}
