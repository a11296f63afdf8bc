package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/groundqa/internal/index"
	"github.com/xxxsen/groundqa/internal/model"
)

type fakeCleaner struct {
	cutoff int64
}

func (f *fakeCleaner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 4, nil
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{}
	j := NewEmbeddingCacheCleanupJob(cleaner, 2)
	now := time.Unix(1_000_000, 0)
	j.now = func() time.Time { return now }
	require.Equal(t, "embedding_cache_cleanup", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Unix()-2*24*3600, cleaner.cutoff)

	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 0).Run(context.Background()))
}

type fakeLoader struct {
	version string
	loads   int
}

func (l *fakeLoader) Version(ctx context.Context) (string, error) {
	return l.version, nil
}

func (l *fakeLoader) Load(ctx context.Context) (*index.FlatIndex, string, error) {
	l.loads++
	idx, err := index.Build([]model.Chunk{{ChunkID: "d:0", Embedding: []float32{1}}})
	return idx, l.version, err
}

func TestIndexReloadJob(t *testing.T) {
	holder := index.NewHolder(nil, "")
	loader := &fakeLoader{version: "b1"}
	j := NewIndexReloadJob(holder, loader)

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 1, holder.Len())
	require.Equal(t, "b1", holder.Version())

	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 1, loader.loads)

	loader.version = "b2"
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 2, loader.loads)
}
